package disk

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// Page . menyimpan data satu page di dalam memori (berukuran PAGE_SIZE, also disimpan di disk).
// page itu untyped byte buffer; index structures (btree page, hash page, table page) overlay
// typed view di atas byte array ini lewat accessor Get/Put pada offset tertentu.
type Page struct {
	bb *bytes.Buffer
}

func NewPage(pageSize int) *Page {
	bb := bytes.NewBuffer(make([]byte, pageSize))
	return &Page{bb}
}

func NewPageFromByteSlice(b []byte) *Page {
	return &Page{bytes.NewBuffer(b)}
}

func (p *Page) GetInt(offset int32) int32 {
	return int32(binary.LittleEndian.Uint32(p.bb.Bytes()[offset:]))
}

// PutInt. set int ke byte array page di posisi = offset.
func (p *Page) PutInt(offset int32, val int32) {
	binary.LittleEndian.PutUint32(p.bb.Bytes()[offset:], uint32(val))
}

func (p *Page) PutUint16(offset int32, val uint16) {
	binary.LittleEndian.PutUint16(p.bb.Bytes()[offset:], val)
}

func (p *Page) GetUint16(offset int32) uint16 {
	return binary.LittleEndian.Uint16(p.bb.Bytes()[offset:])
}

func (p *Page) PutUint32(offset int32, val uint32) {
	binary.LittleEndian.PutUint32(p.bb.Bytes()[offset:], val)
}

func (p *Page) GetUint32(offset int32) uint32 {
	return binary.LittleEndian.Uint32(p.bb.Bytes()[offset:])
}

func (p *Page) PutUint64(offset int32, val uint64) {
	binary.LittleEndian.PutUint64(p.bb.Bytes()[offset:], val)
}

func (p *Page) GetUint64(offset int32) uint64 {
	return binary.LittleEndian.Uint64(p.bb.Bytes()[offset:])
}

func (p *Page) PutInt64(offset int32, val int64) {
	binary.LittleEndian.PutUint64(p.bb.Bytes()[offset:], uint64(val))
}

func (p *Page) GetInt64(offset int32) int64 {
	return int64(binary.LittleEndian.Uint64(p.bb.Bytes()[offset:]))
}

// GetBytes. return byte array dari byte array page di posisi = offset. di awal ada panjang
// bytes nya sehingga buat read bytes tinggal baca buffer page[offset+4:offset+4+length]
func (p *Page) GetBytes(offset int32) []byte {
	length := p.GetInt(offset)
	b := make([]byte, length)
	copy(b, p.bb.Bytes()[offset+4:offset+4+length])
	return b
}

// PutBytes. set byte array ke byte array page di posisi = offset.
func (p *Page) PutBytes(offset int32, b []byte) (int, error) {
	if offset+4+int32(len(b)) > int32(len(p.bb.Bytes())) {
		return 0, errors.New("put bytes out of bound")
	}
	p.PutInt(offset, int32(len(b)))
	copy(p.bb.Bytes()[offset+4:], b)
	return len(b) + 4, nil
}

// GetString. return string dari byte array page di posisi = offset.
func (p *Page) GetString(offset int32) string {
	return string(p.GetBytes(offset))
}

// PutString. set string ke byte array page di posisi = offset.
func (p *Page) PutString(offset int32, s string) {
	p.PutBytes(offset, []byte(s))
}

func (p *Page) PutBool(offset int32, val bool) {
	var bitSetVar uint64
	if val {
		bitSetVar = 1
	}
	p.bb.Bytes()[offset] = byte(bitSetVar)
}

func (p *Page) GetBool(offset int32) bool {
	return p.bb.Bytes()[offset] == byte(1)
}

func (p *Page) Contents() []byte {
	return p.bb.Bytes()
}

// Reset. zero semua byte page. dipakai buffer pool pas reuse frame buat page baru.
func (p *Page) Reset() {
	b := p.bb.Bytes()
	for i := range b {
		b[i] = 0
	}
}

// CopyFrom. copy byte array src ke page.
func (p *Page) CopyFrom(src []byte) {
	copy(p.bb.Bytes(), src)
}
