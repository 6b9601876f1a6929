package service

import "fmt"

// ErrorCode 机器可读的错误原因
type ErrorCode string

// checkout 错误码
const (
	CodeStoreNotFound       ErrorCode = "StoreNotFound"
	CodeStoreNotPublished   ErrorCode = "StoreNotPublished"
	CodeEmptyCart           ErrorCode = "EmptyCart"
	CodeInvalidQuantity     ErrorCode = "InvalidQuantity"
	CodeProductsNotFound    ErrorCode = "ProductsNotFound"
	CodeProductNotAvailable ErrorCode = "ProductNotAvailable"
	CodeCurrencyMismatch    ErrorCode = "CurrencyMismatch"
	CodeOrderNotFound       ErrorCode = "OrderNotFound"
	CodeGatewayError        ErrorCode = "GatewayError"
)

// provisioning 错误码
const (
	CodeInvalidRequest    ErrorCode = "InvalidRequest"
	CodeSlugTooShort      ErrorCode = "SlugTooShort"
	CodeDuplicateSlug     ErrorCode = "DuplicateSlug"
	CodeTenantNotFound    ErrorCode = "TenantNotFound"
	CodeInvalidCurrency   ErrorCode = "InvalidCurrency"
	CodeInvalidSubdomain  ErrorCode = "InvalidSubdomain"
	CodeReservedSubdomain ErrorCode = "ReservedSubdomain"
	CodeInvalidHostname   ErrorCode = "InvalidHostname"
	CodeDuplicateHostname ErrorCode = "DuplicateHostname"
	CodeAlreadyPublished  ErrorCode = "AlreadyPublished"
	CodeSubdomainRequired ErrorCode = "SubdomainRequired"
	CodeDomainNotBound    ErrorCode = "DomainNotBound"
)

// CheckoutError typed failure of the checkout pipeline and storefront reads
type CheckoutError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *CheckoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CheckoutError) Unwrap() error { return e.Err }

func checkoutErr(code ErrorCode, msg string) *CheckoutError {
	return &CheckoutError{Code: code, Message: msg}
}

// ProvisioningError typed failure of store provisioning
type ProvisioningError struct {
	Code    ErrorCode
	Message string
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func provisioningErr(code ErrorCode, format string, args ...any) *ProvisioningError {
	return &ProvisioningError{Code: code, Message: fmt.Sprintf(format, args...)}
}
