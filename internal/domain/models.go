package domain

const TeamCount = 2

// Roles is the fixed slot grid per team, in display order.
var Roles = []string{"TOP", "JUNGLE", "MID", "ADC", "SUPPORT"}

func IsValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

type Lobby struct {
	LobbyID        string
	TournamentName string
	StartsAtIso    string
	Active         bool
	CreatedAtEpoch int64
}

// SlotState is the recorded top bid for one (team, role) slot. A slot with no
// recorded bid reads as the zero state.
type SlotState struct {
	TeamIndex            int
	Role                 string
	TopBidCredits        int
	TopBidderUserID      string
	TopBidderDisplayName string
	TopBidderAvatarURL   string
	UpdatedAtEpoch       int64
}

type LobbyView struct {
	LobbyID        string
	TournamentName string
	StartsAtIso    string
	Active         bool
	Teams          [TeamCount]TeamView
}

type TeamView struct {
	Name  string
	Slots []SlotState
}

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	AvatarURL    string
	Credits      int
	Type         string
	CreatedAt    int64
}

type RiotProfile struct {
	UserID          string
	Puuid           string
	GameName        string
	TagLine         string
	SummonerID      string
	ProfileIconID   int
	SummonerLevel   int64
	LastSyncAtEpoch int64
}

type RankedEntry struct {
	UserID            string
	QueueType         string
	Tier              string
	Rank              string
	LeaguePoints      int
	Wins              int
	Losses            int
	LastSyncedAtEpoch int64
}

type ChampionMastery struct {
	UserID            string
	ChampionID        int
	ChampionPoints    int64
	ChampionLevel     int
	LastPlayTimeEpoch int64
	ChestGranted      bool
	LastSyncedAtEpoch int64
}

// GlobalMatch is written once per match id across all users; the first
// writer wins and later attempts are ignored.
type GlobalMatch struct {
	MatchID             string
	GameStartTimestamp  int64
	GameDurationSeconds int64
	QueueID             int
	RawJSON             string
	CreatedAtEpoch      int64
}

type UserMatchStats struct {
	UserID            string
	MatchID           string
	ChampionID        int
	ChampionName      string
	Kills             int
	Deaths            int
	Assists           int
	CreepScore        int
	GoldEarned        int
	DamageToChampions int64
	VisionScore       int
	Win               bool
	QueueID           int
	RecordedAtEpoch   int64
}

type BidResult struct {
	Accepted             bool
	DidBecomeTopBidder   bool
	CurrentTopBidCredits int
	QueuePosition        int
}
