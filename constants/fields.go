package constants

// Column names of the canonical destination sheet.
const (
	ColumnCustomer    = "Cliente"
	ColumnAmount      = "Valor"
	ColumnStatus      = "Status"
	ColumnObservation = "Observacao"
)

// Default filter/annotate rule applied to tabular sources.
const (
	StatusApproved        = "Aprovado"
	AutomationObservation = "Processado via automação completa"
)
