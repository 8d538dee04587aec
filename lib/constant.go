package lib

const (
	MAX_BUFFER_POOL_SIZE_IN_MB = 64
	PAGE_SIZE                  = 4096
	MAX_BUFFER_POOL_SIZE       = MAX_BUFFER_POOL_SIZE_IN_MB * 1024 * 1024 / PAGE_SIZE

	// page 0 reserved buat header page (mapping index name -> root page id)
	HEADER_PAGE_ID = 0

	BUFFER_POOL_SHARDS = 4

	DB_DIR         = "go_lintangdb"
	PAGE_FILE_NAME = "lintangdb.page"
	LOG_FILE_NAME  = "lintangdb.log"
)
