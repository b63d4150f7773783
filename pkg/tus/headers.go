// Package tus holds the header vocabulary of the resumable upload protocol.
package tus

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	Version = "1.0.0"

	HeaderResumable      = "Tus-Resumable"
	HeaderVersion        = "Tus-Version"
	HeaderExtension      = "Tus-Extension"
	HeaderMaxSize        = "Tus-Max-Size"
	HeaderUploadLength   = "Upload-Length"
	HeaderUploadOffset   = "Upload-Offset"
	HeaderUploadMetadata = "Upload-Metadata"
	HeaderAllowedTypes   = "X-Allowed-Extensions"

	ContentTypeOffsetStream = "application/offset+octet-stream"

	Extensions = "creation,termination,expiration"
)

var ErrInvalidMetadata = errors.New("invalid Upload-Metadata header")

// ParseMetadata decodes "key base64(value),key2 base64(value2)". A key without
// a value maps to the empty string.
func ParseMetadata(header string) (map[string]string, error) {
	out := make(map[string]string)
	header = strings.TrimSpace(header)
	if header == "" {
		return out, nil
	}
	for _, pair := range strings.Split(header, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Fields(pair)
		if len(parts) == 0 || len(parts) > 2 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMetadata, pair)
		}
		key := parts[0]
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrInvalidMetadata, key)
		}
		if len(parts) == 1 {
			out[key] = ""
			continue
		}
		val, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrInvalidMetadata, key, err)
		}
		out[key] = string(val)
	}
	return out, nil
}

// EncodeMetadata is the inverse of ParseMetadata with keys in sorted order.
func EncodeMetadata(meta map[string]string) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		if meta[k] == "" {
			pairs = append(pairs, k)
			continue
		}
		pairs = append(pairs, k+" "+base64.StdEncoding.EncodeToString([]byte(meta[k])))
	}
	return strings.Join(pairs, ",")
}

// ParseInt64 parses a non-negative integer header value.
func ParseInt64(v string) (int64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, errors.New("missing value")
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("negative value")
	}
	return n, nil
}
