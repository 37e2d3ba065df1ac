package brutaltpl

import (
	"bytes"
	"strings"
	"sync"
)

// ----------------------------- Buffer and context pools ---------------------

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

var stringBuilderPool = sync.Pool{
	New: func() any { return &strings.Builder{} },
}

var renderCtxPool = sync.Pool{
	New: func() any {
		return &renderCtx{frames: newFrameStack()}
	},
}
