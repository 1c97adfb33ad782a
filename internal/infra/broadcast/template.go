// Package broadcast implementa o motor de campanhas: personalização de
// template, ritmo de envio, fila durável e o worker de despacho.
package broadcast

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// node é um segmento do template compilado
type node interface {
	render(rng *rand.Rand) string
}

// literalNode é texto fixo
type literalNode string

func (n literalNode) render(_ *rand.Rand) string { return string(n) }

// randomNode escolhe uma alternativa por renderização, ex.: (oi|olá|hey)
type randomNode []string

func (n randomNode) render(rng *rand.Rand) string {
	if len(n) == 0 {
		return ""
	}
	return n[rng.Intn(len(n))]
}

// Template é uma mensagem compilada uma única vez por broadcast. A
// renderização resolve primeiro os grupos aleatórios e depois os
// placeholders de personalização: [[NAME]], as variantes de chave dupla
// ({{NAME}}, {{nama}}, {{waktu}}, {{tanggal}}, {{hari}}) e por fim as de
// chave simples ({nama}, {nomor}, {var1..3}, {waktu}, {tanggal}, {hari}).
// Os aliases de nome aceitam qualquer caixa.
type Template struct {
	nodes []node
}

// RenderData carrega os valores de personalização de um destinatário
type RenderData struct {
	// PushName é o nome reportado pelo WhatsApp ([[NAME]])
	PushName string

	// ContactName é o nome no cadastro de contatos ({{NAME}}, {nama})
	ContactName string

	// Phone é o telefone normalizado ({nomor} e fallback dos nomes)
	Phone string

	Var1 string
	Var2 string
	Var3 string

	// Now ancora os placeholders de data e hora
	Now time.Time
}

// Compile compila a mensagem em nós literais e aleatórios
func Compile(message string) *Template {
	var nodes []node
	remaining := message

	for {
		open := strings.IndexByte(remaining, '(')
		if open < 0 {
			break
		}
		close := strings.IndexByte(remaining[open:], ')')
		if close < 0 {
			break
		}
		close += open

		inner := remaining[open+1 : close]
		if !strings.Contains(inner, "|") {
			// Parênteses comuns seguem como literal
			nodes = append(nodes, literalNode(remaining[:close+1]))
			remaining = remaining[close+1:]
			continue
		}

		if open > 0 {
			nodes = append(nodes, literalNode(remaining[:open]))
		}

		choices := strings.Split(inner, "|")
		for i := range choices {
			choices[i] = strings.TrimSpace(choices[i])
		}
		nodes = append(nodes, randomNode(choices))

		remaining = remaining[close+1:]
	}

	if remaining != "" {
		nodes = append(nodes, literalNode(remaining))
	}

	return &Template{nodes: nodes}
}

// Render produz a mensagem final de um destinatário
func (t *Template) Render(data RenderData, rng *rand.Rand) string {
	var sb strings.Builder
	for _, n := range t.nodes {
		sb.WriteString(n.render(rng))
	}
	out := sb.String()

	pushName := data.PushName
	if pushName == "" {
		pushName = data.Phone
	}
	contactName := data.ContactName
	if contactName == "" {
		contactName = data.Phone
	}

	now := data.Now
	if now.IsZero() {
		now = time.Now()
	}
	waktu := now.Format("15:04")
	tanggal := formatIndonesianDate(now)
	hari := indonesianDay(now.Weekday())

	out = strings.ReplaceAll(out, "[[NAME]]", pushName)

	// Chave dupla antes da simples para não sobrar chaves no texto final
	replacements := []struct {
		token string
		value string
	}{
		{"{{name}}", contactName},
		{"{{nama}}", contactName},
		{"{{waktu}}", waktu},
		{"{{tanggal}}", tanggal},
		{"{{hari}}", hari},
		{"{name}", contactName},
		{"{nama}", contactName},
		{"{nomor}", data.Phone},
		{"{var1}", data.Var1},
		{"{var2}", data.Var2},
		{"{var3}", data.Var3},
		{"{waktu}", waktu},
		{"{tanggal}", tanggal},
		{"{hari}", hari},
	}
	for _, r := range replacements {
		out = replaceFold(out, r.token, r.value)
	}

	return out
}

// replaceFold substitui todas as ocorrências do token ignorando caixa
func replaceFold(s, token, value string) string {
	lower := strings.ToLower(s)
	token = strings.ToLower(token)

	var sb strings.Builder
	for {
		i := strings.Index(lower, token)
		if i < 0 {
			sb.WriteString(s)
			return sb.String()
		}
		sb.WriteString(s[:i])
		sb.WriteString(value)
		s = s[i+len(token):]
		lower = lower[i+len(token):]
	}
}

// Nomes localizados em id-ID para os placeholders de data
var indonesianDays = [...]string{
	"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu",
}

var indonesianMonths = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

func indonesianDay(d time.Weekday) string {
	return indonesianDays[int(d)]
}

func formatIndonesianDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), indonesianMonths[int(t.Month())-1], t.Year())
}
