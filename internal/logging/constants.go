package logging

// Field names shared by every component that logs ledger activity.
const (
	FieldPaymentID     = "payment_id"
	FieldTransactionID = "transaction_id"
	FieldTypeID        = "type_id"
	FieldOperation     = "operation"
	FieldAmount        = "amount"
	FieldCurrency      = "currency"
	FieldState         = "state"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatus        = "status"
	FieldError         = "error"
	FieldDuration      = "duration_ms"
	FieldCount         = "count"
	FieldOutputFile    = "output_file"
	FieldAddress       = "address"
)
