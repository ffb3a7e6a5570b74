package normalizer

import (
	"testing"
	"time"
)

const jsonSuccessBody = `{
	"success": true,
	"message": "Documento localizado com sucesso",
	"documento": {
		"header": {
			"remetente": "ACME INDUSTRIA LTDA",
			"destinatario": "FULANO DE TAL",
			"nro_nf": "123456",
			"pedido": "PED-9987"
		},
		"tracking": [
			{
				"data_hora": "2025-07-01T08:30:00",
				"dominio": "MTZ",
				"filial": "POA",
				"cidade": "PORTO ALEGRE",
				"ocorrencia": "SAIU PARA ENTREGA (59)",
				"descricao": "Mercadoria em rota de entrega"
			},
			{
				"data_hora": "2025-07-01T14:10:00",
				"dominio": "MTZ",
				"filial": "POA",
				"cidade": "PORTO ALEGRE",
				"ocorrencia": "MERCADORIA ENTREGUE (01)",
				"descricao": "Entrega realizada",
				"data_hora_efetiva": "2025-07-01T14:05:00",
				"nome_recebedor": "JOAO",
				"nro_doc_recebedor": "123.456.789-00"
			}
		]
	}
}`

func TestJSONParserSuccess(t *testing.T) {
	t.Parallel()

	result := NewJSONParser().Parse([]byte(jsonSuccessBody))

	if result.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s, want SUCCESS (message=%s)", result.Outcome, result.Message)
	}
	if result.Header.DocumentNumber != "123456" {
		t.Fatalf("document number = %q, want 123456", result.Header.DocumentNumber)
	}
	if result.Header.OrderRef != "PED-9987" {
		t.Fatalf("order ref = %q, want PED-9987", result.Header.OrderRef)
	}
	if len(result.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(result.Events))
	}

	first := result.Events[0]
	if first.OccurrenceText != "SAIU PARA ENTREGA" || first.OccurrenceCode != "59" {
		t.Fatalf("first event = %q (%q), want SAIU PARA ENTREGA (59)", first.OccurrenceText, first.OccurrenceCode)
	}

	second := result.Events[1]
	if second.OccurrenceCode != "01" {
		t.Fatalf("second event code = %q, want 01", second.OccurrenceCode)
	}
	if second.ReceiverName != "JOAO" {
		t.Fatalf("receiver = %q, want JOAO", second.ReceiverName)
	}
	if second.DeliveredAt == nil {
		t.Fatal("second event should carry delivery timestamp")
	}
	wantDelivered := time.Date(2025, 7, 1, 14, 5, 0, 0, time.UTC)
	if !second.DeliveredAt.Equal(wantDelivered) {
		t.Fatalf("delivered at = %s, want %s", second.DeliveredAt, wantDelivered)
	}
}

func TestJSONParserNotFound(t *testing.T) {
	t.Parallel()

	body := `{"success": false, "message": "Documento nao encontrado"}`
	result := NewJSONParser().Parse([]byte(body))

	if result.Outcome != OutcomeNotFound {
		t.Fatalf("outcome = %s, want NOT_FOUND", result.Outcome)
	}
	if result.Message != "Documento nao encontrado" {
		t.Fatalf("message = %q", result.Message)
	}
	if len(result.Events) != 0 {
		t.Fatalf("events = %d, want 0", len(result.Events))
	}
}

func TestJSONParserMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<tracking/>`},
		{name: "missing documento", body: `{"success": true, "message": "ok"}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := NewJSONParser().Parse([]byte(tt.body))
			if result.Outcome != OutcomeMalformed {
				t.Fatalf("outcome = %s, want MALFORMED", result.Outcome)
			}
			if result.Message == "" {
				t.Fatal("malformed result should carry a diagnostic message")
			}
		})
	}
}

func TestJSONParserSkipsIncompleteEvents(t *testing.T) {
	t.Parallel()

	body := `{
		"success": true,
		"documento": {
			"header": {"nro_nf": "42"},
			"tracking": [
				{"data_hora": "not-a-date", "ocorrencia": "COLETA (80)"},
				{"data_hora": "2025-07-01T10:00:00", "ocorrencia": ""},
				{"data_hora": "2025-07-01T11:00:00", "ocorrencia": "EM TRANSFERENCIA (82)"}
			]
		}
	}`

	result := NewJSONParser().Parse([]byte(body))
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s, want SUCCESS", result.Outcome)
	}
	if len(result.Events) != 1 {
		t.Fatalf("events = %d, want 1 (incomplete events skipped)", len(result.Events))
	}
	if result.Events[0].OccurrenceCode != "82" {
		t.Fatalf("surviving event code = %q, want 82", result.Events[0].OccurrenceCode)
	}
}
