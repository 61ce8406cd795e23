package validation

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-msp-checkout/internal/orders"
)

func validOrder() UpsertOrderRequest {
	return UpsertOrderRequest{
		CustomerID: "cust-1",
		Currency:   "EUR",
		Total:      "248.05",
		Lines: []LineRequest{
			{Type: "line_item", ItemID: 1, ProductID: 501, Name: "Coffee", Quantity: 2, Subtotal: "200", Total: "200", TaxStatus: "taxable"},
			{Type: "shipping", ItemID: 2, Name: "Flat rate", Total: "5", Taxes: []string{"1.05"}},
			{Type: "coupon", ItemID: 3, Code: "gift", Discount: "10", DiscountType: "smart_coupon"},
		},
	}
}

func failedTags(t *testing.T, err error) []string {
	t.Helper()
	var ve validatorv10.ValidationErrors
	require.True(t, errors.As(err, &ve), "expected validation errors, got %v", err)
	var tags []string
	for _, fe := range ve {
		tags = append(tags, fe.Field()+":"+fe.Tag())
	}
	return tags
}

func TestUpsertOrderRequest_Valid(t *testing.T) {
	v := New()
	if err := v.Struct(validOrder()); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
}

func TestUpsertOrderRequest_Invalid(t *testing.T) {
	v := New()

	req := validOrder()
	req.Currency = "EURO"
	req.Total = "abc"
	assert.ElementsMatch(t, []string{"Currency:iso4217", "Total:numeric"}, failedTags(t, v.Struct(req)))

	req = validOrder()
	req.Lines[0].Quantity = 0
	assert.Equal(t, []string{"quantity:min_for_line_item"}, failedTags(t, v.Struct(req)))

	req = validOrder()
	req.Lines[1].Type = "tip"
	assert.Equal(t, []string{"Type:oneof"}, failedTags(t, v.Struct(req)))

	req = validOrder()
	req.Lines[1].Taxes = []string{"x"}
	assert.Equal(t, []string{"Taxes[0]:numeric"}, failedTags(t, v.Struct(req)))

	req = validOrder()
	req.Lines[2].Code = ""
	assert.Equal(t, []string{"code:required_for_coupon"}, failedTags(t, v.Struct(req)))
}

func TestCreatePaymentRequest(t *testing.T) {
	v := New()

	ok := CreatePaymentRequest{OrderID: "o1", Gateway: "multisafepay_ideal", Currency: "EUR"}
	require.NoError(t, v.Struct(ok))

	bad := CreatePaymentRequest{OrderID: "o1", Gateway: "paypal"}
	assert.Equal(t, []string{"Gateway:msp_gateway"}, failedTags(t, v.Struct(bad)))

	bad = CreatePaymentRequest{Gateway: "multisafepay_amex", Currency: "XXXX"}
	assert.ElementsMatch(t, []string{"OrderID:required", "Currency:iso4217"}, failedTags(t, v.Struct(bad)))
}

func TestToOrder(t *testing.T) {
	o := validOrder().ToOrder("order-7")
	assert.Equal(t, "order-7", o.OrderID)
	require.Len(t, o.Lines, 3)
	assert.Equal(t, orders.LineTypeProduct, o.Lines[0].Type)
	assert.Equal(t, []string{"1.05"}, o.Lines[1].Taxes)
	assert.Equal(t, "smart_coupon", o.Lines[2].DiscountType)
}

func TestBindAndValidate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := New()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"order_id":"o1","gateway":"nope"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	var req CreatePaymentRequest
	require.Error(t, BindAndValidate(c, &req, v))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_failed")
	assert.Contains(t, w.Body.String(), "CreatePaymentRequest.Gateway")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	require.Error(t, DecodeAndValidate(c, []byte(`{`), &req, v))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_request_body")
}
