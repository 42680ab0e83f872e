package models

import "time"

// Credential is a compact signed bearer token (header.payload.signature) and
// the time it was generated. It lives only in memory.
// Credential 是紧凑格式的签名令牌及其生成时间，仅保存在内存中。
type Credential struct {
	Token       string
	GeneratedAt time.Time
}

// IsZero reports whether no credential has been generated yet.
func (c Credential) IsZero() bool {
	return c.Token == ""
}

// Age returns how old the credential is at now.
func (c Credential) Age(now time.Time) time.Duration {
	return now.Sub(c.GeneratedAt)
}

// ValidAt reports whether the credential may still be reused at now.
func (c Credential) ValidAt(now time.Time, window time.Duration) bool {
	return !c.IsZero() && c.Age(now) < window
}
