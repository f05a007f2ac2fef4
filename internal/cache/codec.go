package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// CodecError 表示正文或元数据编解码失败。调用方应把它等同于缓存未命中，
// 而不是向上传播。
type CodecError struct {
	Op  string
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec %s: %v", e.Op, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// metadata 是 .meta 文件的 JSON 结构，字段名与历史部署保持位兼容。
type metadata struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
}

// encodeBody 将响应正文压缩为 gzip 字节流。
func encodeBody(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		zw.Close()
		return nil, &CodecError{Op: "encode body", Err: err}
	}
	if err := zw.Close(); err != nil {
		return nil, &CodecError{Op: "encode body", Err: err}
	}
	return buf.Bytes(), nil
}

// decodeBody 解压缓存正文；输入不是合法 gzip 数据时返回 CodecError。
func decodeBody(compressed []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, &CodecError{Op: "decode body", Err: err}
	}
	defer zr.Close()

	body, err := io.ReadAll(zr)
	if err != nil {
		return nil, &CodecError{Op: "decode body", Err: err}
	}
	return body, nil
}

func encodeMeta(statusCode int, headers map[string]string) ([]byte, error) {
	raw, err := json.Marshal(metadata{StatusCode: statusCode, Headers: headers})
	if err != nil {
		return nil, &CodecError{Op: "encode meta", Err: err}
	}
	return raw, nil
}

func decodeMeta(raw []byte) (*metadata, error) {
	var meta metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, &CodecError{Op: "decode meta", Err: err}
	}
	return &meta, nil
}
