package normalizer

import (
	"encoding/xml"
	"strings"
)

// XMLParser parses the XML shape of the tracking API response:
//
//	<tracking><success>true</success><message/><documento>...</documento></tracking>
type XMLParser struct{}

func NewXMLParser() *XMLParser { return &XMLParser{} }

type xmlEnvelope struct {
	XMLName   xml.Name     `xml:"tracking"`
	Success   string       `xml:"success"`
	Message   string       `xml:"message"`
	Documento *xmlDocument `xml:"documento"`
}

type xmlDocument struct {
	Header xmlHeader `xml:"header"`
	Items  []xmlItem `xml:"items>item"`
}

type xmlHeader struct {
	Sender         string `xml:"remetente"`
	Recipient      string `xml:"destinatario"`
	DocumentNumber string `xml:"nro_nf"`
	OrderRef       string `xml:"pedido"`
}

type xmlItem struct {
	Timestamp     string `xml:"data_hora"`
	Domain        string `xml:"dominio"`
	Branch        string `xml:"filial"`
	City          string `xml:"cidade"`
	Occurrence    string `xml:"ocorrencia"`
	Description   string `xml:"descricao"`
	EffectiveTime string `xml:"data_hora_efetiva"`
	ReceiverName  string `xml:"nome_recebedor"`
	ReceiverDoc   string `xml:"nro_doc_recebedor"`
}

func (p *XMLParser) Parse(raw []byte) Result {
	var envelope xmlEnvelope
	if err := xml.Unmarshal(raw, &envelope); err != nil {
		return malformed("invalid tracking XML: %v", err)
	}

	if !strings.EqualFold(strings.TrimSpace(envelope.Success), "true") {
		message := strings.TrimSpace(envelope.Message)
		if message == "" {
			message = "document not found"
		}
		return Result{Outcome: OutcomeNotFound, Message: message}
	}

	if envelope.Documento == nil {
		return malformed("invalid tracking XML: missing documento element")
	}

	items := make([]rawItem, 0, len(envelope.Documento.Items))
	for _, item := range envelope.Documento.Items {
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
