package cache

import (
	"time"

	"github.com/google/uuid"
)

// TTLs padronizados por família de chave. QR e código de pareamento
// expiram juntos com a validade do artefato no aparelho.
const (
	TTLQRCode       = 600 * time.Second
	TTLPairingCode  = 600 * time.Second
	TTLContact      = 30 * time.Minute
	TTLContactList  = 10 * time.Minute
	TTLTemplate     = 30 * time.Minute
	TTLSettings     = 15 * time.Minute
	TTLSubscription = 15 * time.Minute
)

// KeyQRCode é a chave do último payload de QR de um dispositivo
func KeyQRCode(deviceID uuid.UUID) string {
	return "qr:" + deviceID.String()
}

// KeyPairingCode é a chave do código de pareamento formatado
func KeyPairingCode(deviceID uuid.UUID) string {
	return "pairing:" + deviceID.String()
}

// KeyContact é a chave de um contato individual por telefone normalizado
func KeyContact(userID uuid.UUID, phone string) string {
	return "contact:" + userID.String() + ":" + phone
}

// KeyContactList é a chave da lista de contatos de um usuário
func KeyContactList(userID uuid.UUID) string {
	return "contacts:" + userID.String()
}

// KeyTemplate é a chave de um template de mensagem
func KeyTemplate(templateID uuid.UUID) string {
	return "template:" + templateID.String()
}

// KeySettings é a chave das configurações de um usuário
func KeySettings(userID uuid.UUID) string {
	return "settings:" + userID.String()
}

// KeySubscription é a chave do estado de assinatura de um usuário
func KeySubscription(userID uuid.UUID) string {
	return "subscription:" + userID.String()
}
