package models

import "github.com/turtacn/pushgate/pkg/constants"

// TokenRecord is one registry entry: an identity key mapped to a recipient token
// within one environment. A record lives in exactly one list per environment;
// the storage does not enforce that, the registry operations do.
// TokenRecord 是注册表中的一条记录：身份键映射到某环境下的接收方令牌。
type TokenRecord struct {
	// Key identifies the requester, typically its IPv4 address string.
	Key string `json:"ip"`

	// Token is the recipient device token the gateway addresses.
	Token string `json:"token"`

	// Environment tags which namespace the record came from.
	Environment Environment `json:"server_type"`
}

// EnumerateResult is a bounded enumeration of one list.
type EnumerateResult struct {
	Records []TokenRecord

	// Truncated is set when more entries existed than the enumeration bound.
	Truncated bool
}

// RegisterResult reports what a registration call did.
type RegisterResult struct {
	Status constants.RegisterStatus `json:"status"`
	Reason constants.RegisterReason `json:"reason,omitempty"`
}

// Applied reports whether the registration wrote the token.
func (r RegisterResult) Applied() bool {
	return r.Status == constants.RegisterStatusOK
}
