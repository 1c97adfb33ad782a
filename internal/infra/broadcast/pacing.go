package broadcast

import (
	"math/rand"
	"time"

	"wafleet/internal/domain/broadcast"
)

// Degraus do ritmo adaptativo: listas maiores recebem intervalos maiores
// para reduzir o risco de bloqueio do número
const (
	adaptiveTier1 = 20
	adaptiveTier2 = 50
	adaptiveTier3 = 100
)

// jitterRatio é a variação máxima aplicada quando Randomize está ligado
const jitterRatio = 0.30

// defaultManualDelay é o intervalo usado quando o modo manual não define um
const defaultManualDelay = 5 * time.Second

// adaptiveBase deriva o intervalo base do tamanho da lista
func adaptiveBase(totalRecipients int) time.Duration {
	switch {
	case totalRecipients <= adaptiveTier1:
		return 3 * time.Second
	case totalRecipients <= adaptiveTier2:
		return 5 * time.Second
	case totalRecipients <= adaptiveTier3:
		return 8 * time.Second
	default:
		return 12 * time.Second
	}
}

// NextDelay calcula o intervalo antes do próximo envio
func NextDelay(p broadcast.PacingConfig, totalRecipients int, rng *rand.Rand) time.Duration {
	var base time.Duration
	if p.DelayMode == broadcast.DelayAdaptive {
		base = adaptiveBase(totalRecipients)
	} else {
		base = time.Duration(p.BaseDelaySeconds) * time.Second
		if base <= 0 {
			base = defaultManualDelay
		}
	}

	if !p.Randomize {
		return base
	}
	return applyJitter(base, rng)
}

// applyJitter aplica variação uniforme de ±30% ao intervalo
func applyJitter(base time.Duration, rng *rand.Rand) time.Duration {
	delta := (rng.Float64()*2 - 1) * jitterRatio
	jittered := time.Duration(float64(base) * (1 + delta))
	if jittered < 0 {
		return 0
	}
	return jittered
}

// IsBatchBoundary verifica se o envio de índice i fecha um lote
func IsBatchBoundary(processed, batchSize int) bool {
	return batchSize > 0 && processed > 0 && processed%batchSize == 0
}
