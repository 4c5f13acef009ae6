package protocol

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// maxInflatedBody 单帧解压后的上限，防止压缩炸弹。
const maxInflatedBody = 16 << 20

// ExpandBody 从 rest 中截取当前帧的 body（total_length-16 字节），多余字节属于后续帧不会被消耗。
// 压缩帧执行 zlib 解压；其它版本直接返回子切片，不拷贝。
func ExpandBody(h Header, rest []byte) ([]byte, error) {
	n := h.BodyLen()
	if n < 0 || n > len(rest) {
		return nil, fmt.Errorf("%w: body needs %d bytes, have %d", ErrMalformedFrame, n, len(rest))
	}
	body := rest[:n]
	if h.Version != VersionCompressed {
		return body, nil
	}
	return inflate(body)
}

func inflate(body []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, maxInflatedBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
	}
	if len(out) > maxInflatedBody {
		return nil, fmt.Errorf("%w: inflated body exceeds %d bytes", ErrDecompressionFailed, maxInflatedBody)
	}
	return out, nil
}
