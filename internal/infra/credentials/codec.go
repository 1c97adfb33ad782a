// Package credentials implementa a persistência de credenciais de sessão:
// o codec do blob, o armazém sobre o repositório de dispositivos e o
// adaptador de auth state consumido pelo socket.
package credentials

import (
	"encoding/json"
	"fmt"

	"wafleet/internal/wasock"
)

// blobVersion identifica o formato corrente do blob persistido
const blobVersion = 1

// blob é o envelope serializado de um estado de autenticação completo.
// Material binário atravessa o JSON como base64 sem perda.
type blob struct {
	Version int                                     `json:"version"`
	Creds   *wasock.Creds                           `json:"creds"`
	Keys    map[wasock.KeyKind]map[string][]byte    `json:"keys"`
}

// Encode serializa credenciais e chaves no formato do blob
func Encode(creds *wasock.Creds, keys map[wasock.KeyKind]map[string][]byte) ([]byte, error) {
	if creds == nil {
		return nil, fmt.Errorf("cannot encode nil creds")
	}
	data, err := json.Marshal(blob{
		Version: blobVersion,
		Creds:   creds,
		Keys:    keys,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode credential blob: %w", err)
	}
	return data, nil
}

// Decode reconstitui credenciais e chaves a partir do blob. Qualquer
// malformação retorna erro; o chamador trata blob corrompido como ausente.
func Decode(data []byte) (*wasock.Creds, map[wasock.KeyKind]map[string][]byte, error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("empty credential blob")
	}

	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, nil, fmt.Errorf("failed to decode credential blob: %w", err)
	}
	if b.Creds == nil {
		return nil, nil, fmt.Errorf("credential blob missing creds")
	}
	if b.Version != blobVersion {
		return nil, nil, fmt.Errorf("unsupported credential blob version %d", b.Version)
	}

	keys := b.Keys
	if keys == nil {
		keys = make(map[wasock.KeyKind]map[string][]byte)
	}
	return b.Creds, keys, nil
}
