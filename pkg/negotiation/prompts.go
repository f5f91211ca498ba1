package negotiation

import (
	"fmt"
	"strconv"
)

const sellerPrompt = `You are a Seller at a %s.
You are selling: '%s'.
The listed price is: $%s.

Your secret goal is to get the highest price possible, but you absolutely CANNOT sell for less than your secret walk-away price of $%s.
Your personality is: %s.

Below is the negotiation history so far. Continue the conversation naturally, and make your next offer.
Do not sound like a robot/AI or over pompous. Be concise and to the point, use no more than 100 words or less.
Your response MUST end with your new offer price on its own line, formatted exactly like this:
Price: $XX

Negotiation History:
%s

Your Response:`

const buyerPrompt = `You are a Buyer at a %s.
You want to buy: '%s'.
The seller's listed price is: $%s.

Your secret goal is to get the best deal possible. Your target price is $%s, but you absolutely CANNOT pay more than your secret maximum price of $%s.
Your desire for this item is: %s.

Below is the negotiation history so far. Continue the conversation naturally, and make your next counter-offer.
Do not sound like a robot/AI or over pompous. Be concise and to the point, use no more than 100 words or less.
Your response MUST end with your new offer price on its own line, formatted exactly like this:
Price: $XX

Negotiation History:
%s

Your Response:`

const moderatorPrompt = `You are a world-class negotiation expert analyzing a transaction.
The negotiation transcript is provided below.

Here is the public and secret information:
- Item: '%s'
- Final Deal Price: $%s
- Seller's Secret Minimum Price: $%s
- Buyer's Secret Target Price: $%s
- Buyer's Secret Maximum Price: $%s

Based on all this information, who got the better deal and why?
Do not sound like a robot/AI and be concise and to the point, use no more than 150 words or less.
Provide a brief, expert analysis of the negotiation, including what tactics were used effectively or ineffectively.

Transcript:
%s

Your Analysis:`

// FormatPrice prints whole prices without decimals.
func FormatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// SellerPrompt renders the seller's turn.
func SellerPrompt(s Scenario, history string) string {
	return fmt.Sprintf(sellerPrompt, s.Name, s.ItemName, FormatPrice(s.ListPrice),
		FormatPrice(s.SellerMinPrice), s.SellerPersonality, history)
}

// BuyerPrompt renders the buyer's turn.
func BuyerPrompt(s Scenario, history string) string {
	return fmt.Sprintf(buyerPrompt, s.Name, s.ItemName, FormatPrice(s.ListPrice),
		FormatPrice(s.BuyerTargetPrice), FormatPrice(s.BuyerMaxPrice), s.BuyerDesireLevel, history)
}

// ModeratorPrompt renders the post-deal analysis request.
func ModeratorPrompt(s Scenario, finalPrice float64, transcript string) string {
	return fmt.Sprintf(moderatorPrompt, s.ItemName, FormatPrice(finalPrice), FormatPrice(s.SellerMinPrice),
		FormatPrice(s.BuyerTargetPrice), FormatPrice(s.BuyerMaxPrice), transcript)
}
