package csgoroll

// GraphQL documents used against the CSGORoll API. The subscription documents
// request the same trade shape so created and updated trades decode
// identically.

const currentUserQuery = `
	query CurrentUser {
		currentUser {
			id
			wallets {
				name
				amount
			}
		}
	}
`

const createTradeSubscription = `subscription OnCreateTrade {
	createTrade {
		trade {
			id
			status
			depositor {
				id
				steamId
				displayName
			}
			withdrawer {
				id
				steamId
				displayName
			}
			tradeItems {
				marketName
				value
				markupPercent
				stickers {
					wear
					value
					name
					color
				}
			}
		}
	}
}`

const updateTradeSubscription = `subscription OnUpdateTrade {
	updateTrade {
		trade {
			id
			status
			depositor {
				id
				steamId
				displayName
			}
			withdrawer {
				id
				steamId
				displayName
			}
			tradeItems {
				marketName
				value
				markupPercent
				stickers {
					wear
					value
					name
					color
				}
			}
		}
	}
}`
