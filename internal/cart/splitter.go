package cart

import "satstall/internal/models"

// Split groups cart line items by seller, preserving first-seen seller order
// so a retried checkout sees the same group sequence. shippingCosts maps a
// shipping method id to its cost in sats; recipients carries each seller's
// configured revenue-share recipients. Callers validate shipping methods
// before calling, an unknown method id here contributes zero shipping.
func Split(items []models.LineItem, shippingCosts map[string]int64, recipients map[string][]models.RevenueShareRecipient) []models.SellerGroup {
	groups := make([]models.SellerGroup, 0)
	index := make(map[string]int)

	for _, item := range items {
		i, ok := index[item.SellerPubkey]
		if !ok {
			i = len(groups)
			index[item.SellerPubkey] = i
			groups = append(groups, models.SellerGroup{
				SellerPubkey: item.SellerPubkey,
				Recipients:   recipients[item.SellerPubkey],
			})
		}
		groups[i].Items = append(groups[i].Items, item)
		groups[i].SubtotalSats += item.TotalSats()
		groups[i].ShippingSats += shippingCosts[item.ShippingMethodID]
	}
	return groups
}
