// Package gateway 封装交易所接入：签名 REST 客户端、公共行情
// 客户端与 websocket 成交流。所有客户端的 HTTP 层都可注入，便于
// 用 httptest 做离线测试。
package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// SignForm 对 urlencoded 请求体做 HMAC-SHA512 签名，返回十六进制摘要。
func SignForm(body, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

// APIError 交易所业务层错误（HTTP 200 但 error 字段非空）。
type APIError struct {
	Method  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange api %s: %s", e.Method, e.Message)
}

// flexFloat 兼容交易所把数字编码成字符串或原生数字两种形态。
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = str
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

// flexInt 同 flexFloat，用于 id 与时间戳字段。
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = str
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse integer %q: %w", s, err)
	}
	*f = flexInt(v)
	return nil
}
