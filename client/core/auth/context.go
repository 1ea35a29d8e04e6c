// Package auth 管理EasyAPI访问凭据并为出站请求附加认证头
package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// EasyAPI认证头名称
const (
	HeaderID  = "easyapi-id"
	HeaderKey = "easyapi-key"
)

// ErrInvalidCredentials 凭据标识或密钥为空
var ErrInvalidCredentials = errors.New("auth: api id and api key must not be empty")

// Credentials 访问凭据，密钥不序列化、不记录日志
type Credentials struct {
	ID  string
	Key string
}

// Context 持有凭据并装饰出站请求，构造后不可变
// 不执行任何网络I/O
type Context struct {
	creds Credentials
}

// NewContext 创建认证上下文
func NewContext(apiID, apiKey string) (*Context, error) {
	if apiID == "" || apiKey == "" {
		return nil, ErrInvalidCredentials
	}
	return &Context{creds: Credentials{ID: apiID, Key: apiKey}}, nil
}

// Decorate 将认证头写入请求头，除此之外无任何副作用
func (c *Context) Decorate(header http.Header) {
	header.Set(HeaderID, c.creds.ID)
	header.Set(HeaderKey, c.creds.Key)
}

// ID 返回凭据标识（标识可公开，密钥不可）
func (c *Context) ID() string {
	return c.creds.ID
}

// String 凭据密钥脱敏输出
func (c *Context) String() string {
	return fmt.Sprintf("auth.Context(id=%s, key=****)", c.creds.ID)
}
