// Package chat is the dashboard assistant: keyword commands with canned
// replies, optionally falling back to a chat-completions model for
// anything the keywords do not cover.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"posto-dashboard/internal/category"
)

type Tag string

const (
	TagNone            Tag = ""
	TagFilterToday     Tag = "filter_today"
	TagFilterWeek      Tag = "filter_week"
	TagShowRanking     Tag = "show_ranking"
	TagShowGoals       Tag = "show_goals"
	TagCompareSegments Tag = "compare_segments"
)

const Greeting = "Olá! Sou sua assistente IA para o dashboard. Posso ajudar você a filtrar dados, gerar relatórios e analisar métricas. " +
	"Experimente comandos como 'mostrar dados de hoje' ou 'comparar vendas do posto vs conveniência'."

const genericReply = "Entendi sua solicitação. Estou processando os dados e aplicando os filtros necessários."

// Toast is the notification shown when a command fires.
func (t Tag) Toast() string {
	switch t {
	case TagFilterToday:
		return "Filtros aplicados para dados de hoje"
	case TagFilterWeek:
		return "Visualizando dados da semana atual"
	case TagShowRanking:
		return "Ranking de colaboradores atualizado"
	case TagShowGoals:
		return "Exibindo comparativo de metas"
	case TagCompareSegments:
		return "Comparando Posto vs Conveniência"
	default:
		return "Comando processado com sucesso"
	}
}

type command struct {
	tag   Tag
	all   []string
	any   []string
	reply string
}

// First match wins.
var commands = []command{
	{
		tag:   TagFilterToday,
		any:   []string{"HOJE"},
		reply: "Aplicando filtro para dados de hoje. Os KPIs foram atualizados para mostrar apenas as métricas do dia atual.",
	},
	{
		tag:   TagFilterWeek,
		any:   []string{"SEMANA"},
		reply: "Filtrando dados da semana atual. Você pode ver os resultados nos gráficos e tabelas atualizados.",
	},
	{
		tag:   TagShowRanking,
		any:   []string{"RANKING", "COLABORADORES"},
		reply: "Exibindo ranking de colaboradores por performance. Os dados estão ordenados por faturamento total.",
	},
	{
		tag:   TagShowGoals,
		any:   []string{"META"},
		reply: "Mostrando comparativo de metas vs realizado. Você pode ver o progresso mensal e diário nas tabelas abaixo.",
	},
	{
		tag:   TagCompareSegments,
		all:   []string{"POSTO", "CONVENIENCIA"},
		reply: "Comparando performance entre Posto e Conveniência. Os gráficos mostram as tendências de ambos os segmentos.",
	},
}

func (c command) match(s string) bool {
	for _, kw := range c.all {
		if !strings.Contains(s, kw) {
			return false
		}
	}
	if len(c.any) == 0 {
		return true
	}
	for _, kw := range c.any {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

type Source string

const (
	SourceRules Source = "rules"
	SourceModel Source = "model"
)

type Reply struct {
	Text   string    `json:"text"`
	Tag    Tag       `json:"tag,omitempty"`
	Toast  string    `json:"toast,omitempty"`
	Source Source    `json:"source"`
	At     time.Time `json:"at"`
}

// Match applies the keyword commands, ignoring case and accents. ok is
// false when nothing matched.
func Match(input string) (Reply, bool) {
	s := category.Normalize(input)
	for _, c := range commands {
		if c.match(s) {
			return Reply{Text: c.reply, Tag: c.tag, Toast: c.tag.Toast(), Source: SourceRules}, true
		}
	}
	return Reply{Text: genericReply, Source: SourceRules}, false
}

// Completer answers free text; *OpenAI implements it.
type Completer interface {
	Complete(ctx context.Context, input string) (string, error)
}

type Assistant struct {
	model  Completer
	logger *slog.Logger
	now    func() time.Time
}

// NewAssistant builds an assistant; model may be nil.
func NewAssistant(model Completer, logger *slog.Logger) *Assistant {
	return &Assistant{model: model, logger: logger, now: time.Now}
}

// Reply answers input. Commands never reach the model; a model failure
// degrades to the generic reply.
func (a *Assistant) Reply(ctx context.Context, input string) Reply {
	reply, ok := Match(input)
	reply.At = a.now()
	if ok || a.model == nil || strings.TrimSpace(input) == "" {
		return reply
	}

	text, err := a.model.Complete(ctx, input)
	if err != nil {
		a.logger.Warn("chat model unavailable, using canned reply", "error", err)
		return reply
	}
	if text = strings.TrimSpace(text); text == "" {
		return reply
	}
	reply.Text = text
	reply.Source = SourceModel
	return reply
}
