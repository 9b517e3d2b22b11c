package messaging

// Topic is the name of one saga channel.
type Topic string

const (
	TopicPurchaseRequest                Topic = "purchase-request"
	TopicPurchaseYankiValidationRequest Topic = "purchase-yanki-validation-request"
	TopicPurchaseYankiValidationSuccess Topic = "purchase-yanki-validation-success"
	TopicPurchaseYankiValidationFailed  Topic = "purchase-yanki-validation-failed"
	TopicPurchaseSuccess                Topic = "purchase-success"
	TopicPurchaseFailed                 Topic = "purchase-failed"

	TopicExchangeRequest                Topic = "exchange-request"
	TopicExchangeYankiValidationRequest Topic = "exchange-yanki-validation-request"
	TopicExchangeYankiValidationSuccess Topic = "exchange-yanki-validation-success"
	TopicExchangeYankiValidationFailed  Topic = "exchange-yanki-validation-failed"
	TopicExchangeSuccess                Topic = "exchange-success"
	TopicExchangeFailed                 Topic = "exchange-failed"

	TopicAccountAssociationRequest Topic = "account-association-request"
	TopicAccountAssociationSuccess Topic = "account-association-success"
	TopicAccountAssociationFailed  Topic = "account-association-failed"

	TopicPhoneWalletAssociationRequest Topic = "phonewallet-association-request"
	TopicPhoneWalletAssociationSuccess Topic = "phonewallet-association-success"
	TopicPhoneWalletAssociationFailed  Topic = "phonewallet-association-failed"

	TopicDebitCardAssociationRequest Topic = "debitcard-association-request"
	TopicDebitCardAssociationSuccess Topic = "debitcard-association-success"
	TopicDebitCardAssociationFailed  Topic = "debitcard-association-failed"
)

// Workflow names the kind of saga an envelope belongs to.
type Workflow string

const (
	WorkflowPurchase               Workflow = "PURCHASE"
	WorkflowExchange               Workflow = "EXCHANGE"
	WorkflowAccountAssociation     Workflow = "ACCOUNT_ASSOCIATION"
	WorkflowPhoneWalletAssociation Workflow = "PHONE_WALLET_ASSOCIATION"
	WorkflowDebitCardAssociation   Workflow = "DEBIT_CARD_ASSOCIATION"
)

// Association groups the three channels of one association handshake.
type Association struct {
	Workflow Workflow
	Request  Topic
	Success  Topic
	Failed   Topic
}

var (
	AccountAssociation = Association{
		Workflow: WorkflowAccountAssociation,
		Request:  TopicAccountAssociationRequest,
		Success:  TopicAccountAssociationSuccess,
		Failed:   TopicAccountAssociationFailed,
	}
	PhoneWalletAssociation = Association{
		Workflow: WorkflowPhoneWalletAssociation,
		Request:  TopicPhoneWalletAssociationRequest,
		Success:  TopicPhoneWalletAssociationSuccess,
		Failed:   TopicPhoneWalletAssociationFailed,
	}
	DebitCardAssociation = Association{
		Workflow: WorkflowDebitCardAssociation,
		Request:  TopicDebitCardAssociationRequest,
		Success:  TopicDebitCardAssociationSuccess,
		Failed:   TopicDebitCardAssociationFailed,
	}
)
