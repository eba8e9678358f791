package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreditAccountValidate(t *testing.T) {
	acct := &CreditAccount{UserID: "u1", Balance: 5, TotalPurchased: 5}
	assert.NoError(t, acct.Validate())

	acct.Balance = -1
	assert.Error(t, acct.Validate())

	assert.Error(t, (&CreditAccount{}).Validate())
}

func TestCreditAccountConsistent(t *testing.T) {
	assert.True(t, (&CreditAccount{Balance: 7, TotalPurchased: 10, TotalUsed: 3}).Consistent())
	assert.False(t, (&CreditAccount{Balance: 8, TotalPurchased: 10, TotalUsed: 3}).Consistent())

	var missing *CreditAccount
	assert.False(t, missing.Consistent())
}

func TestCreditTransactionTypeIsCredit(t *testing.T) {
	for _, typ := range []CreditTransactionType{CreditTransactionPurchase, CreditTransactionRefund, CreditTransactionBonus} {
		assert.True(t, typ.IsCredit(), typ)
	}
	assert.False(t, CreditTransactionUsage.IsCredit())
	assert.False(t, CreditTransactionType("gift").IsCredit())
}
