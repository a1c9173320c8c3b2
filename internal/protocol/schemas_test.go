package protocol_test

import (
	"testing"

	"whisperwire.ai/internal/protocol"
)

func TestValidateInbound_Samples(t *testing.T) {
	ok := []struct {
		typ string
		raw string
	}{
		{protocol.TypeHello, `{"type":"HELLO","protocol_version":"1.0","player_name":"bot1"}`},
		{protocol.TypeHello, `{"type":"HELLO","protocol_version":"1.0","player_name":"bot1","seed":"ABCD2345wxyz"}`},
		{protocol.TypeAct, `{"type":"ACT","protocol_version":"1.0","req_id":"R1","command":"ABILITY","ability":"rumor","source":"a","targets":["b"]}`},
		{protocol.TypeAct, `{"type":"ACT","protocol_version":"1.0","req_id":"R2","command":"CHOICE","chain":"C1","choice":"deny"}`},
		{protocol.TypeAct, `{"type":"ACT","protocol_version":"1.0","req_id":"R3","command":"ADVANCE"}`},
	}
	for _, c := range ok {
		if err := protocol.ValidateInbound(c.typ, []byte(c.raw)); err != nil {
			t.Fatalf("validate %s: %v", c.raw, err)
		}
	}
}

func TestValidateInbound_Rejects(t *testing.T) {
	bad := []struct {
		typ string
		raw string
	}{
		{protocol.TypeHello, `{"type":"HELLO","protocol_version":"1.0"}`},
		{protocol.TypeHello, `{"type":"HELLO","protocol_version":"1.0","player_name":"x","seed":"too-short"}`},
		{protocol.TypeAct, `{"type":"ACT","protocol_version":"1.0","req_id":"R1","command":"ABILITY","ability":"rumor"}`},
		{protocol.TypeAct, `{"type":"ACT","protocol_version":"1.0","req_id":"R1","command":"FLY"}`},
		{protocol.TypeAct, `{"type":"ACT","protocol_version":"1.0","req_id":"R1","command":"UNDO","extra":1}`},
		{protocol.TypeAck, `{"type":"ACK"}`},
	}
	for _, c := range bad {
		if err := protocol.ValidateInbound(c.typ, []byte(c.raw)); err == nil {
			t.Fatalf("expected rejection: %s", c.raw)
		}
	}
}
