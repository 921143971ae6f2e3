package sqlite

import (
	"errors"
	"unsafe"

	"github.com/joacominatel/sqlzen/internal/database"
	"modernc.org/libc"
	"modernc.org/libc/sys/types"
	lib "modernc.org/sqlite/lib"
)

const ptrSize = unsafe.Sizeof(uintptr(0))

const busyTimeoutMS = 5000

var errNoMem = errors.New("sqlite: out of memory")

// Error is a failure reported by the engine, with its extended result code.
type Error struct {
	Code int
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

// handle is a raw engine connection. Only interrupt may be called while
// another method is running.
type handle struct {
	tls *libc.TLS
	db  uintptr
}

func openHandle(name string) (*handle, error) {
	h := &handle{tls: libc.NewTLS()}

	cname, err := libc.CString(name)
	if err != nil {
		h.tls.Close()
		return nil, err
	}
	defer libc.Xfree(h.tls, cname)

	ppdb := libc.Xmalloc(h.tls, types.Size_t(ptrSize))
	if ppdb == 0 {
		h.tls.Close()
		return nil, errNoMem
	}
	defer libc.Xfree(h.tls, ppdb)
	*(*uintptr)(unsafe.Pointer(ppdb)) = 0

	flags := int32(lib.SQLITE_OPEN_READWRITE | lib.SQLITE_OPEN_CREATE | lib.SQLITE_OPEN_URI | lib.SQLITE_OPEN_FULLMUTEX)
	rc := lib.Xsqlite3_open_v2(h.tls, cname, ppdb, flags, 0)
	h.db = *(*uintptr)(unsafe.Pointer(ppdb))
	if rc != lib.SQLITE_OK {
		err := h.errorFor(rc)
		_ = h.close()
		return nil, err
	}

	lib.Xsqlite3_extended_result_codes(h.tls, h.db, 1)
	lib.Xsqlite3_busy_timeout(h.tls, h.db, busyTimeoutMS)
	return h, nil
}

func (h *handle) errorFor(rc int32) error {
	msg := ""
	if h.db != 0 {
		msg = libc.GoString(lib.Xsqlite3_errmsg(h.tls, h.db))
	}
	if msg == "" {
		msg = libc.GoString(lib.Xsqlite3_errstr(h.tls, rc))
	}
	return &Error{Code: int(rc), Msg: msg}
}

// interrupt aborts the running statement. It is safe to call from any
// goroutine while the handle is open.
func (h *handle) interrupt() {
	tls := libc.NewTLS()
	defer tls.Close()
	lib.Xsqlite3_interrupt(tls, h.db)
}

func (h *handle) close() error {
	var err error
	if h.db != 0 {
		if rc := lib.Xsqlite3_close_v2(h.tls, h.db); rc != lib.SQLITE_OK {
			err = h.errorFor(rc)
		}
		h.db = 0
	}
	h.tls.Close()
	return err
}

// each compiles the statements of sql in order and calls fn with each one.
// Statements are finalized after fn returns. Iteration stops at the first
// error.
func (h *handle) each(sql string, fn func(s *stmt) error) error {
	csql, err := libc.CString(sql)
	if err != nil {
		return err
	}
	defer libc.Xfree(h.tls, csql)

	pp := libc.Xmalloc(h.tls, types.Size_t(2*ptrSize))
	if pp == 0 {
		return errNoMem
	}
	defer libc.Xfree(h.tls, pp)
	ppStmt, ppTail := pp, pp+ptrSize

	tail := csql
	for *(*byte)(unsafe.Pointer(tail)) != 0 {
		*(*uintptr)(unsafe.Pointer(ppStmt)) = 0
		if rc := lib.Xsqlite3_prepare_v2(h.tls, h.db, tail, -1, ppStmt, ppTail); rc != lib.SQLITE_OK {
			return h.errorFor(rc)
		}
		tail = *(*uintptr)(unsafe.Pointer(ppTail))

		p := *(*uintptr)(unsafe.Pointer(ppStmt))
		if p == 0 {
			// Only whitespace or a comment was left.
			continue
		}

		s := &stmt{h: h, p: p}
		err := fn(s)
		lib.Xsqlite3_finalize(h.tls, p)
		if err != nil {
			return err
		}
	}
	return nil
}

// stmt is a prepared statement.
type stmt struct {
	h *handle
	p uintptr
}

// step advances to the next row and reports whether one is available.
func (s *stmt) step() (bool, error) {
	switch rc := lib.Xsqlite3_step(s.h.tls, s.p); rc {
	case lib.SQLITE_ROW:
		return true, nil
	case lib.SQLITE_DONE:
		return false, nil
	default:
		return false, s.h.errorFor(rc)
	}
}

func (s *stmt) columnCount() int {
	return int(lib.Xsqlite3_column_count(s.h.tls, s.p))
}

func (s *stmt) columnName(i int) string {
	return libc.GoString(lib.Xsqlite3_column_name(s.h.tls, s.p, int32(i)))
}

// declType returns the declared type of a table column exactly as written
// in its definition. ok is false for expressions.
func (s *stmt) declType(i int) (string, bool) {
	p := lib.Xsqlite3_column_decltype(s.h.tls, s.p, int32(i))
	if p == 0 {
		return "", false
	}
	return libc.GoString(p), true
}

// cell reads column i of the current row by its storage class.
func (s *stmt) cell(i int) database.CellValue {
	tls, col := s.h.tls, int32(i)
	switch lib.Xsqlite3_column_type(tls, s.p, col) {
	case lib.SQLITE_INTEGER:
		return database.Int64(int64(lib.Xsqlite3_column_int64(tls, s.p, col)))
	case lib.SQLITE_FLOAT:
		return database.Float64(lib.Xsqlite3_column_double(tls, s.p, col))
	case lib.SQLITE_TEXT:
		p := lib.Xsqlite3_column_text(tls, s.p, col)
		n := int(lib.Xsqlite3_column_bytes(tls, s.p, col))
		return database.Text(string(bytesAt(p, n)))
	case lib.SQLITE_BLOB:
		p := lib.Xsqlite3_column_blob(tls, s.p, col)
		n := int(lib.Xsqlite3_column_bytes(tls, s.p, col))
		return database.Blob(bytesAt(p, n))
	default:
		return database.Null()
	}
}

// bytesAt views n bytes of engine memory. The caller copies them before the
// statement moves on.
func bytesAt(p uintptr, n int) []byte {
	if p == 0 || n == 0 {
		return []byte{}
	}
	return (*libc.RawMem)(unsafe.Pointer(p))[:n:n]
}
