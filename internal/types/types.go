package types

type Direction string

type AccountKind string

type LedgerEntryType string

type TransferType string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

const (
	AccountKindAvailable AccountKind = "available"
	AccountKindCustody   AccountKind = "custody"
	AccountKindExternal  AccountKind = "external"
)

const (
	LedgerEntryTypeDeposit      LedgerEntryType = "deposit"
	LedgerEntryTypeWithdraw     LedgerEntryType = "withdraw"
	LedgerEntryTypeCollateral   LedgerEntryType = "collateral"
	LedgerEntryTypePayout       LedgerEntryType = "payout"
	LedgerEntryTypeKeeperBonus  LedgerEntryType = "keeper_bonus"
	LedgerEntryTypeBadDebt      LedgerEntryType = "bad_debt"
	LedgerEntryTypeContribution LedgerEntryType = "contribution"
)

const (
	TransferTypeDebit  TransferType = "debit"
	TransferTypeCredit TransferType = "credit"
)
