package protocol

import "errors"

var (
	// ErrMalformedFrame 头部过短、header_length 不为 16、version/type 未知，或长度越界。
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	// ErrDecompressionFailed 压缩帧 zlib 解压失败，只影响当前帧。
	ErrDecompressionFailed = errors.New("protocol: decompression failed")
	// ErrMessageDecode 单条消息 JSON 解析失败或缺少必填字段，只影响当前子消息。
	ErrMessageDecode = errors.New("protocol: message decode failed")
)
