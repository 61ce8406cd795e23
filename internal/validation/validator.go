package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-msp-checkout/internal/gateways"
	"github.com/imrishuroy/go-msp-checkout/internal/orders"
)

// New returns a configured validator with the custom tags and struct-level
// validations registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	_ = v.RegisterValidation("msp_gateway", func(fl validatorv10.FieldLevel) bool {
		return gateways.IsGateway(fl.Field().String())
	})
	v.RegisterStructValidation(lineStructValidation, LineRequest{})

	return v
}

// lineStructValidation enforces the fields each line type needs.
func lineStructValidation(sl validatorv10.StructLevel) {
	l := sl.Current().Interface().(LineRequest)

	switch l.Type {
	case orders.LineTypeProduct:
		if l.ProductID == 0 {
			sl.ReportError(l.ProductID, "product_id", "ProductID", "required_for_line_item", "")
		}
		if l.Name == "" {
			sl.ReportError(l.Name, "name", "Name", "required_for_line_item", "")
		}
		if l.Quantity < 1 {
			sl.ReportError(l.Quantity, "quantity", "Quantity", "min_for_line_item", "1")
		}
		if l.Total == "" {
			sl.ReportError(l.Total, "total", "Total", "required_for_line_item", "")
		}
	case orders.LineTypeShipping, orders.LineTypeFee:
		if l.Total == "" {
			sl.ReportError(l.Total, "total", "Total", "required_for_"+l.Type, "")
		}
	case orders.LineTypeCoupon:
		if l.Code == "" {
			sl.ReportError(l.Code, "code", "Code", "required_for_coupon", "")
		}
		if l.Discount == "" {
			sl.ReportError(l.Discount, "discount", "Discount", "required_for_coupon", "")
		}
	}
}
