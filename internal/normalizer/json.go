package normalizer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vialog/nfe-tracker/internal/config"
)

// JSONParser parses the JSON shape of the tracking API response:
//
//	{"success": true, "message": "...", "documento": {"header": {...}, "tracking": [...]}}
type JSONParser struct{}

func NewJSONParser() *JSONParser { return &JSONParser{} }

type jsonEnvelope struct {
	Success   bool          `json:"success"`
	Message   string        `json:"message"`
	Documento *jsonDocument `json:"documento"`
}

type jsonDocument struct {
	Header   jsonHeader `json:"header"`
	Tracking []jsonItem `json:"tracking"`
}

type jsonHeader struct {
	Sender         string `json:"remetente"`
	Recipient      string `json:"destinatario"`
	DocumentNumber string `json:"nro_nf"`
	OrderRef       string `json:"pedido"`
}

type jsonItem struct {
	Timestamp     string `json:"data_hora"`
	Domain        string `json:"dominio"`
	Branch        string `json:"filial"`
	City          string `json:"cidade"`
	Occurrence    string `json:"ocorrencia"`
	Description   string `json:"descricao"`
	EffectiveTime string `json:"data_hora_efetiva"`
	ReceiverName  string `json:"nome_recebedor"`
	ReceiverDoc   string `json:"nro_doc_recebedor"`
}

func (p *JSONParser) Parse(raw []byte) Result {
	var envelope jsonEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return malformed("invalid tracking JSON: %v", err)
	}

	if !envelope.Success {
		message := strings.TrimSpace(envelope.Message)
		if message == "" {
			message = "document not found"
		}
		return Result{Outcome: OutcomeNotFound, Message: message}
	}

	if envelope.Documento == nil {
		return malformed("invalid tracking JSON: missing documento field")
	}

	items := make([]rawItem, 0, len(envelope.Documento.Tracking))
	for _, item := range envelope.Documento.Tracking {
		items = append(items, rawItem{
			Timestamp:     item.Timestamp,
			Branch:        item.Branch,
			Domain:        item.Domain,
			City:          item.City,
			Occurrence:    item.Occurrence,
			Description:   item.Description,
			EffectiveTime: item.EffectiveTime,
			ReceiverName:  item.ReceiverName,
			ReceiverDoc:   item.ReceiverDoc,
		})
	}

	return Result{
		Outcome: OutcomeSuccess,
		Message: strings.TrimSpace(envelope.Message),
		Header: Header{
			Sender:         strings.TrimSpace(envelope.Documento.Header.Sender),
			Recipient:      strings.TrimSpace(envelope.Documento.Header.Recipient),
			DocumentNumber: strings.TrimSpace(envelope.Documento.Header.DocumentNumber),
			OrderRef:       strings.TrimSpace(envelope.Documento.Header.OrderRef),
		},
		Events: buildEvents(items),
	}
}

// ForFormat returns the parser matching the configured response format.
func ForFormat(format string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case config.FormatXML:
		return NewXMLParser(), nil
	case config.FormatJSON:
		return NewJSONParser(), nil
	default:
		return nil, fmt.Errorf("unsupported response format %q", format)
	}
}
