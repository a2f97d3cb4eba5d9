package command

import (
	"encoding/json"
	"testing"

	"token_market/internal/domain"
)

func TestKind_IsQuery(t *testing.T) {
	mutations := []Kind{KindIssue, KindTransfer, KindSetApprovalForAll, KindDeposit, KindWithdraw, KindPostSellOrder, KindPostBuyOrder, Kind("bogus")}
	for _, k := range mutations {
		if k.IsQuery() {
			t.Errorf("%s should not be a query", k)
		}
	}

	queries := []Kind{KindBalanceOf, KindTotalSupply, KindIsApprovedForAll, KindFundsOf, KindGetOrderBook, KindOpenOrders}
	for _, k := range queries {
		if !k.IsQuery() {
			t.Errorf("%s should be a query", k)
		}
	}
}

func TestRequest_DecodesWireFrame(t *testing.T) {
	raw := `{"kind":"post_buy_order","order_id":3,"quantity":2,"value":"200000000000000000"}`

	var req Request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if req.Kind != KindPostBuyOrder || req.OrderID != 3 || req.Quantity != 2 {
		t.Errorf("Unexpected request: %+v", req)
	}
	if !req.Value.Equal(domain.MustEther("0.2")) {
		t.Errorf("Expected 0.2 ether in wei, got %s", req.Value)
	}
}
