package lib

import "fmt"

// Assert. guard structural invariant. kalau cond false berarti ada page/index yang corrupt,
// langsung panic karena state on-disk sudah tidak bisa dipercaya.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("structural corruption: "+format, args...))
	}
}
