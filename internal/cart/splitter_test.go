package cart

import (
	"testing"

	"satstall/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sellerA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	sellerB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func testItems() []models.LineItem {
	return []models.LineItem{
		{ProductID: "p1", SellerPubkey: sellerA, UnitAmountSats: 1000, Quantity: 2, ShippingMethodID: "std"},
		{ProductID: "p2", SellerPubkey: sellerB, UnitAmountSats: 5000, Quantity: 1, ShippingMethodID: "std"},
		{ProductID: "p3", SellerPubkey: sellerA, UnitAmountSats: 300, Quantity: 3, ShippingMethodID: "express"},
	}
}

func TestSplitGroupsBySeller(t *testing.T) {
	shipping := map[string]int64{"std": 500, "express": 1500}
	groups := Split(testItems(), shipping, nil)

	require.Len(t, groups, 2)
	assert.Equal(t, sellerA, groups[0].SellerPubkey)
	assert.Equal(t, sellerB, groups[1].SellerPubkey)

	assert.Equal(t, int64(2900), groups[0].SubtotalSats)
	assert.Equal(t, int64(2000), groups[0].ShippingSats)
	require.Len(t, groups[0].Items, 2)

	assert.Equal(t, int64(5000), groups[1].SubtotalSats)
	assert.Equal(t, int64(500), groups[1].ShippingSats)
}

func TestSplitSubtotalConservation(t *testing.T) {
	items := testItems()
	groups := Split(items, nil, nil)

	var cartTotal, groupTotal int64
	for _, it := range items {
		cartTotal += it.TotalSats()
	}
	for _, g := range groups {
		groupTotal += g.SubtotalSats
	}
	assert.Equal(t, cartTotal, groupTotal)
}

func TestSplitDeterministicOrder(t *testing.T) {
	shipping := map[string]int64{"std": 500, "express": 1500}
	first := Split(testItems(), shipping, nil)
	second := Split(testItems(), shipping, nil)
	assert.Equal(t, first, second)
}

func TestSplitEmptyCart(t *testing.T) {
	groups := Split(nil, nil, nil)
	assert.Empty(t, groups)
}

func TestSplitAttachesRecipients(t *testing.T) {
	recipients := map[string][]models.RevenueShareRecipient{
		sellerA: {{RecipientPubkey: "cc", Percentage: "10"}},
	}
	groups := Split(testItems(), nil, recipients)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].Recipients, 1)
	assert.Empty(t, groups[1].Recipients)
}
