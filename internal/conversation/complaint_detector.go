package conversation

import (
	"context"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/agenda-agent/pkg/logging"
)

var complaintTracer = otel.Tracer("agenda/complaint-detector")

// ComplaintType represents the kind of complaint detected.
type ComplaintType string

const (
	ComplaintNone     ComplaintType = ""
	ComplaintService  ComplaintType = "SERVICE_QUALITY"
	ComplaintDelay    ComplaintType = "DELAY"
	ComplaintBilling  ComplaintType = "BILLING"
	ComplaintStaff    ComplaintType = "STAFF_CONDUCT"
	ComplaintGeneral  ComplaintType = "GENERAL"
	complaintMinScore               = 0.6
)

// ComplaintResult contains the result of complaint detection.
type ComplaintResult struct {
	Detected       bool
	Type           ComplaintType
	Confidence     float64
	MatchedKeyword string
}

// ComplaintDetector flags customer messages that read as complaints so the
// sweep can turn them into tickets.
type ComplaintDetector struct {
	logger   *logging.Logger
	order    []ComplaintType
	patterns map[ComplaintType][]*complaintPattern
}

type complaintPattern struct {
	regex   *regexp.Regexp
	weight  float64
	keyword string
}

func NewComplaintDetector(logger *logging.Logger) *ComplaintDetector {
	if logger == nil {
		logger = logging.Default()
	}

	d := &ComplaintDetector{
		logger:   logger,
		order:    []ComplaintType{ComplaintStaff, ComplaintBilling, ComplaintDelay, ComplaintService, ComplaintGeneral},
		patterns: make(map[ComplaintType][]*complaintPattern),
	}

	d.patterns[ComplaintService] = []*complaintPattern{
		{regex: regexp.MustCompile(`(?i)\b(p[ée]ssim[oa]|horr[íi]vel|terr[íi]vel)\s+(atendimento|servi[çc]o|trabalho|resultado)\b`), weight: 0.9, keyword: "péssimo atendimento"},
		{regex: regexp.MustCompile(`(?i)\b(atendimento|servi[çc]o|trabalho|resultado)\s+(foi\s+)?(p[ée]ssim[oa]|horr[íi]vel|muito ruim|ruim)\b`), weight: 0.85, keyword: "serviço ruim"},
		{regex: regexp.MustCompile(`(?i)\b(estragou|estragaram|queimou|queimaram|machucou|machucaram)\b`), weight: 0.9, keyword: "dano"},
		{regex: regexp.MustCompile(`(?i)\bn[ãa]o\s+(gostei|fiquei satisfeit[oa])\b`), weight: 0.7, keyword: "não gostei"},
	}

	d.patterns[ComplaintDelay] = []*complaintPattern{
		{regex: regexp.MustCompile(`(?i)\b(esperei|esperando)\s+(mais de\s+)?(\d+|uma|duas)\s+(hora|horas|minutos)\b`), weight: 0.85, keyword: "espera longa"},
		{regex: regexp.MustCompile(`(?i)\b(muito|super|enorme)\s+atras(o|ad[oa])\b`), weight: 0.75, keyword: "atraso"},
		{regex: regexp.MustCompile(`(?i)\bningu[ée]m\s+(me\s+)?(atendeu|apareceu|respondeu)\b`), weight: 0.8, keyword: "ninguém atendeu"},
	}

	d.patterns[ComplaintBilling] = []*complaintPattern{
		{regex: regexp.MustCompile(`(?i)\bcobra(ram|do|ram-me)?\s+(a mais|errado|duas vezes|em dobro)\b`), weight: 0.9, keyword: "cobrança indevida"},
		{regex: regexp.MustCompile(`(?i)\b(quero|exijo)\s+(o\s+)?(meu\s+)?(reembolso|dinheiro de volta|estorno)\b`), weight: 0.9, keyword: "reembolso"},
		{regex: regexp.MustCompile(`(?i)\bcobran[çc]a\s+indevida\b`), weight: 0.95, keyword: "cobrança indevida"},
	}

	d.patterns[ComplaintStaff] = []*complaintPattern{
		{regex: regexp.MustCompile(`(?i)\b(grosseir[oa]|mal[- ]educad[oa]|estúpid[oa]|desrespeit(o|os[oa]|ou))\b`), weight: 0.9, keyword: "desrespeito"},
		{regex: regexp.MustCompile(`(?i)\bme\s+trat(ou|aram)\s+mal\b`), weight: 0.9, keyword: "me tratou mal"},
	}

	d.patterns[ComplaintGeneral] = []*complaintPattern{
		{regex: regexp.MustCompile(`(?i)\b(quero|vou|gostaria de)\s+(fazer\s+uma\s+|registrar\s+uma\s+|abrir\s+uma\s+)?reclama(r|[çc][ãa]o)\b`), weight: 0.95, keyword: "reclamação"},
		{regex: regexp.MustCompile(`(?i)\b(muito\s+)?insatisfeit[oa]\b`), weight: 0.8, keyword: "insatisfeito"},
		{regex: regexp.MustCompile(`(?i)\b(absurdo|descaso|vergonha|procon)\b`), weight: 0.75, keyword: "indignação"},
		{regex: regexp.MustCompile(`(?i)\bdecepcionad[oa]\b`), weight: 0.7, keyword: "decepcionado"},
	}

	return d
}

// DetectComplaint returns the strongest matching complaint signal.
func (d *ComplaintDetector) DetectComplaint(ctx context.Context, message string) *ComplaintResult {
	_, span := complaintTracer.Start(ctx, "complaint.detect")
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" {
		return &ComplaintResult{}
	}

	var best *ComplaintResult
	for _, complaintType := range d.order {
		for _, p := range d.patterns[complaintType] {
			if !p.regex.MatchString(message) {
				continue
			}
			if best == nil || p.weight > best.Confidence {
				best = &ComplaintResult{
					Detected:       true,
					Type:           complaintType,
					Confidence:     p.weight,
					MatchedKeyword: p.keyword,
				}
			}
		}
	}
	if best == nil || best.Confidence < complaintMinScore {
		return &ComplaintResult{}
	}

	span.SetAttributes(
		attribute.Bool("complaint.detected", true),
		attribute.String("complaint.type", string(best.Type)),
		attribute.Float64("complaint.confidence", best.Confidence),
		attribute.String("complaint.keyword", best.MatchedKeyword),
	)
	logging.FromContext(ctx, d.logger).Info("complaint detected",
		"type", best.Type,
		"confidence", best.Confidence,
		"keyword", best.MatchedKeyword,
	)
	return best
}

// Severity maps a detection to the ticket severity used by the sweep.
func (d *ComplaintDetector) Severity(result *ComplaintResult) string {
	if result == nil || !result.Detected {
		return "none"
	}
	switch result.Type {
	case ComplaintStaff, ComplaintBilling:
		return "high"
	case ComplaintService:
		if result.Confidence >= 0.85 {
			return "high"
		}
		return "medium"
	case ComplaintDelay:
		return "medium"
	default:
		return "low"
	}
}
