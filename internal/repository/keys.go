package repository

import "fmt"

// Single-table key schema. User credentials live under the username
// partition; riot profile, ranked, mastery and per-match stats live under
// the user-id partition. GetProfile bridges the two with a scan fallback.

const metaSK = "META"

func lobbyPK(lobbyID string) string { return "LOBBY#" + lobbyID }

func topBidSK(teamIndex int, role string) string {
	return fmt.Sprintf("TOPBID#%d#%s", teamIndex, role)
}

func userPK(usernameOrID string) string { return "USER#" + usernameOrID }

func rankSK(queueType string) string { return "RANK#" + queueType }

func masterySK(championID int) string { return fmt.Sprintf("MASTERY#%d", championID) }

func matchPK(matchID string) string { return "MATCH#" + matchID }

func userMatchSK(matchID string) string { return "MATCH#" + matchID }
