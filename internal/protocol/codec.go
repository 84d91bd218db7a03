package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyMessage は空のメッセージをデコードしようとしたときのエラーです。
var ErrEmptyMessage = errors.New("empty message")

// Encode はペイロードを種類 t のエンベロープに包んでJSONにします。
func Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("envelope type is empty")
	}
	if payload == nil {
		return nil, fmt.Errorf("payload for %q is nil", t)
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %q payload: %w", t, err)
	}
	return json.Marshal(Envelope{T: t, P: pb})
}

// DecodeEnvelope はJSONをエンベロープとして読み込みます。ペイロードはまだデコードしません。
func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, ErrEmptyMessage
	}
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if e.T == "" {
		return Envelope{}, fmt.Errorf("envelope has no type")
	}
	return e, nil
}

// DecodePayload はエンベロープのペイロードを型 T として読み込みます。
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.P) == 0 {
		return out, fmt.Errorf("empty payload for type %q", env.T)
	}
	if err := json.Unmarshal(env.P, &out); err != nil {
		return out, fmt.Errorf("failed to decode %q payload: %w", env.T, err)
	}
	return out, nil
}

// EncodeError はエラーメッセージを error エンベロープにします。
func EncodeError(message string) []byte {
	b, err := Encode(MsgError, Error{Message: message})
	if err != nil {
		// Error 構造体のマーシャルは失敗しない
		return []byte(`{"t":"error","p":{"message":"internal error"}}`)
	}
	return b
}
