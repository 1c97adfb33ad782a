// Package phone implementa normalização de números de telefone e construção
// de JIDs do WhatsApp. O código de país padrão é 62 (Indonésia).
package phone

import (
	"errors"
	"strings"
)

const (
	// DefaultCountryCode é o código de país aplicado a números locais
	DefaultCountryCode = "62"

	// UserServer é o sufixo JID para contatos individuais
	UserServer = "s.whatsapp.net"

	// GroupServer é o sufixo JID para grupos
	GroupServer = "g.us"
)

var (
	// ErrInvalidPhoneNumber indica que o número não pôde ser normalizado
	ErrInvalidPhoneNumber = errors.New("invalid phone number")

	// ErrInvalidPairingCode indica que o código de pareamento não tem 8 caracteres
	ErrInvalidPairingCode = errors.New("invalid pairing code")
)

// Normalize normaliza um número de telefone para o formato internacional
// sem o prefixo "+". Regras, nesta ordem:
//
//  1. remover todos os caracteres não numéricos;
//  2. "0" inicial é substituído pelo código de país 62;
//  3. "8" inicial com até 12 dígitos recebe o prefixo 62;
//  4. números sem prefixo 62 com até 12 dígitos recebem o prefixo 62;
//  5. o resultado final precisa ter entre 10 e 15 dígitos.
func Normalize(raw string) (string, error) {
	digits := stripNonDigits(raw)
	if digits == "" {
		return "", ErrInvalidPhoneNumber
	}

	switch {
	case strings.HasPrefix(digits, "0"):
		digits = DefaultCountryCode + digits[1:]
	case strings.HasPrefix(digits, "8") && len(digits) <= 12:
		digits = DefaultCountryCode + digits
	case !strings.HasPrefix(digits, DefaultCountryCode) && len(digits) <= 12:
		digits = DefaultCountryCode + digits
	}

	if len(digits) < 10 || len(digits) > 15 {
		return "", ErrInvalidPhoneNumber
	}

	return digits, nil
}

// UserJID converte um número normalizado em JID de usuário
func UserJID(normalized string) string {
	return normalized + "@" + UserServer
}

// GroupJID converte um id de grupo em JID de grupo
func GroupJID(groupID string) string {
	return groupID + "@" + GroupServer
}

// ToJID normaliza um número e retorna o JID de usuário correspondente.
// Entradas que já são JIDs (contêm "@") são retornadas como estão.
func ToJID(raw string) (string, error) {
	if strings.Contains(raw, "@") {
		return raw, nil
	}

	normalized, err := Normalize(raw)
	if err != nil {
		return "", err
	}

	return UserJID(normalized), nil
}

// IsJID verifica se o valor já está no formato JID
func IsJID(value string) bool {
	return strings.HasSuffix(value, "@"+UserServer) || strings.HasSuffix(value, "@"+GroupServer)
}

// BareNumber extrai os dígitos de um JID de usuário
func BareNumber(jid string) string {
	if idx := strings.IndexByte(jid, '@'); idx >= 0 {
		return jid[:idx]
	}
	return jid
}

// FormatPairingCode formata um código de pareamento de 8 caracteres
// no formato exibido ao usuário: XXXX-XXXX. Códigos que já contêm o
// separador são normalizados antes.
func FormatPairingCode(code string) (string, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(code), "-", "")
	if len(clean) != 8 {
		return "", ErrInvalidPairingCode
	}
	return clean[:4] + "-" + clean[4:], nil
}

// stripNonDigits remove tudo que não for dígito
func stripNonDigits(raw string) string {
	var builder strings.Builder
	builder.Grow(len(raw))

	for _, r := range raw {
		if r >= '0' && r <= '9' {
			builder.WriteRune(r)
		}
	}

	return builder.String()
}
