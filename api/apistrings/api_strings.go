package apistrings

const (
	/// Request Related Strings
	InvalidInput    = "invalid request, please check submitted information"
	Unauthenticated = "unauthorized request"
	InvalidBearer   = "invalid token, expects bearer token"

	/// Core Functionality Error
	ServerError = "a server error occurred, please try again later"

	/// Wallet Related Strings
	WalletFetched       = "wallet fetched successfully"
	TransactionsFetched = "transactions fetched successfully"

	/// Campaign Related Strings
	CampaignFetched   = "campaign fetched successfully"
	CampaignsFetched  = "campaigns fetched successfully"
	BudgetDeducted    = "campaign budget deducted"
	BudgetNotDeducted = "budget could not be deducted, check campaign budget and wallet balance"

	/// Work Related Strings
	WorksFetched    = "works fetched successfully"
	AppliedToWork   = "applied to campaign successfully"
	WorkSubmitted   = "work submitted successfully"
	WorkApproved    = "work approved and reward credited"
	WorkNotApproved = "work could not be approved, it may already be decided"
	WorkRejected    = "work rejected"
	WorkNotRejected = "work could not be rejected, it may already be decided"

	/// Money Request Related Strings
	RequestCreated    = "request submitted for review"
	RequestsFetched   = "requests fetched successfully"
	RequestProcessed  = "request processed successfully"
	RequestNotDecided = "request could not be processed, it may already be decided or the balance is insufficient"
)
