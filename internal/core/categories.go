package core

// DefaultCategory is a seed entry for new users.
type DefaultCategory struct {
	Name string
	Type TransactionType
	Icon string
}

// DefaultCategories is the fixed seed set: 6 income, 11 expense and 6 transfer categories.
var DefaultCategories = []DefaultCategory{
	{"Salary", Income, "💼"},
	{"Bonus", Income, "🎁"},
	{"Investment Returns", Income, "📈"},
	{"Freelance", Income, "💻"},
	{"Gifts Received", Income, "🎀"},
	{"Other Income", Income, "💰"},

	{"Food & Drinks", Expense, "🍔"},
	{"Transportation", Expense, "🚗"},
	{"Shopping", Expense, "🛍️"},
	{"Bills & Utilities", Expense, "💡"},
	{"Entertainment", Expense, "🎬"},
	{"Health", Expense, "🏥"},
	{"Education", Expense, "📚"},
	{"Housing", Expense, "🏠"},
	{"Personal Care", Expense, "💇"},
	{"Donations", Expense, "🤲"},
	{"Other Expense", Expense, "📦"},

	{"Between Accounts", Transfer, "🔄"},
	{"E-Wallet Top Up", Transfer, "📱"},
	{"Cash Withdrawal", Transfer, "🏧"},
	{"Savings", Transfer, "🐷"},
	{"Investment Deposit", Transfer, "🏦"},
	{"Debt Payment", Transfer, "💳"},
}
