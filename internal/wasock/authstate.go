package wasock

import (
	"context"
	"crypto/rand"

	"golang.org/x/crypto/curve25519"
)

// KeyKind identifica as famílias de chaves criptográficas mantidas pelo
// protocolo Signal por baixo da sessão
type KeyKind string

const (
	KindPreKey              KeyKind = "pre-key"
	KindSession             KeyKind = "session"
	KindSenderKey           KeyKind = "sender-key"
	KindAppStateSyncKey     KeyKind = "app-state-sync-key"
	KindAppStateSyncVersion KeyKind = "app-state-sync-version"
	KindSenderKeyMemory     KeyKind = "sender-key-memory"
)

// KeyPair é um par de chaves Curve25519 em forma bruta
type KeyPair struct {
	Public  []byte `json:"public"`
	Private []byte `json:"private"`
}

// SignedPreKey é um pre-key assinado pela chave de identidade
type SignedPreKey struct {
	KeyPair
	KeyID     uint32 `json:"keyId"`
	Signature []byte `json:"signature"`
}

// BoundIdentity é a identidade vinculada após um pareamento bem-sucedido
type BoundIdentity struct {
	JID  string `json:"jid"`
	Name string `json:"name,omitempty"`
}

// Creds é o material de identidade de longa duração de uma sessão.
// Registered=false indica credenciais recém-geradas, ainda sem vínculo.
type Creds struct {
	NoiseKey          KeyPair       `json:"noiseKey"`
	SignedIdentityKey KeyPair       `json:"signedIdentityKey"`
	SignedPreKey      SignedPreKey  `json:"signedPreKey"`
	RegistrationID    uint32        `json:"registrationId"`
	AdvSecretKey      []byte        `json:"advSecretKey"`
	Registered        bool          `json:"registered"`
	Me                *BoundIdentity `json:"me,omitempty"`
	Platform          string        `json:"platform,omitempty"`
}

// NewCreds gera credenciais frescas e não registradas. A geração nunca
// falha; esgotamento de entropia do sistema é irrecuperável.
func NewCreds() *Creds {
	return &Creds{
		NoiseKey:          newKeyPair(),
		SignedIdentityKey: newKeyPair(),
		SignedPreKey: SignedPreKey{
			KeyPair:   newKeyPair(),
			KeyID:     1,
			Signature: randomBytes(64),
		},
		RegistrationID: randomUint32()%16380 + 1,
		AdvSecretKey:   randomBytes(32),
		Registered:     false,
	}
}

// KeyStore é o armazenamento de chaves voláteis do protocolo. Get retorna
// apenas as entradas existentes; Set com valor nil remove a entrada.
type KeyStore interface {
	Get(ctx context.Context, kind KeyKind, ids []string) (map[string][]byte, error)
	Set(ctx context.Context, records map[KeyKind]map[string][]byte) error
}

// AuthState é a visão de credenciais que a biblioteca de protocolo consome.
// Save persiste o estado corrente; falhas de armazenamento são registradas
// pelo adaptador e nunca propagadas ao caminho quente do socket.
type AuthState interface {
	Creds() *Creds
	Keys() KeyStore
	Save(ctx context.Context)
}

func newKeyPair() KeyPair {
	priv := randomBytes(32)
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		panic("wasock: curve25519 key derivation failed: " + err.Error())
	}
	return KeyPair{Public: pub, Private: priv}
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("wasock: crypto/rand unavailable: " + err.Error())
	}
	return b
}

func randomUint32() uint32 {
	b := randomBytes(4)
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
