// Package fleet implementa a identidade do servidor e o controle de
// atribuição de dispositivos entre os servidores da frota.
package fleet

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// serverIDPattern define os identificadores aceitos para servidores
var serverIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,128}$`)

// reservedServerIDs são nomes que nunca podem identificar um servidor
var reservedServerIDs = map[string]struct{}{
	"admin":  {},
	"root":   {},
	"system": {},
	"null":   {},
}

// ResolveServerID resolve a identidade estável do servidor na frota.
// Precedência: ID explícito da configuração, hostname do sistema e, por
// último, um sufixo aleatório (identidade efêmera, registrada em log
// pelo chamador).
func ResolveServerID(explicit string) (string, error) {
	if explicit != "" {
		if err := ValidateServerID(explicit); err != nil {
			return "", fmt.Errorf("invalid SERVER_ID: %w", err)
		}
		return explicit, nil
	}

	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		if err := ValidateServerID(hostname); err == nil {
			return hostname, nil
		}
	}

	generated := "server-" + uuid.New().String()[:8]
	return generated, nil
}

// ValidateServerID valida formato e nomes reservados
func ValidateServerID(id string) error {
	if !serverIDPattern.MatchString(id) {
		return fmt.Errorf("server id %q must match %s", id, serverIDPattern.String())
	}
	if _, reserved := reservedServerIDs[strings.ToLower(id)]; reserved {
		return fmt.Errorf("server id %q is reserved", id)
	}
	return nil
}
