package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRuleRequestAcceptsStringsAndNumbers(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantTrigger string
		wantAmount  string
	}{
		{name: "strings", body: `{"triggerPrice":"2000","repayAmount":"100.5"}`, wantTrigger: "2000", wantAmount: "100.5"},
		{name: "numbers", body: `{"triggerPrice":2000,"repayAmount":100.5}`, wantTrigger: "2000", wantAmount: "100.5"},
		{name: "null", body: `{"triggerPrice":null}`, wantTrigger: "", wantAmount: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req CreateRuleRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.wantTrigger, string(req.TriggerPrice))
			assert.Equal(t, tt.wantAmount, string(req.RepayAmount))
		})
	}
}

func TestCreateRuleRequestRejectsOtherTypes(t *testing.T) {
	var req CreateRuleRequest
	assert.Error(t, json.Unmarshal([]byte(`{"triggerPrice":true}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"repayAmount":{"v":1}}`), &req))
}
