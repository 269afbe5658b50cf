package domain

const (
	CurrencyFun   = "FUN"
	CurrencyToken = "USDT"

	TxTypeDeposit    = "deposit"
	TxTypeSweep      = "sweep"
	TxTypeWithdrawal = "withdrawal"

	TxStatusPending   = "PENDING"
	TxStatusConfirmed = "CONFIRMED"
	TxStatusFailed    = "FAILED"
)

// Keys for admin-tunable values stored in app_settings.
const (
	SettingMinGasWei = "sweep.min_gas_wei"
)
