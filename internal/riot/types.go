package riot

import (
	"encoding/json"

	"sub2play/internal/apperr"
)

type Account struct {
	Puuid    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

type Summoner struct {
	// SummonerID may be missing in some responses; callers treat it as
	// optional.
	SummonerID    string `json:"id"`
	ProfileIconID int    `json:"profileIconId"`
	SummonerLevel int64  `json:"summonerLevel"`
}

type RankedEntry struct {
	QueueType    string `json:"queueType"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

type ChampionMastery struct {
	ChampionID     int   `json:"championId"`
	ChampionPoints int64 `json:"championPoints"`
	ChampionLevel  int   `json:"championLevel"`
	LastPlayTime   int64 `json:"lastPlayTime"`
	ChestGranted   bool  `json:"chestGranted"`
}

// MatchPayload is the typed shape of a match-v5 payload, restricted to the
// fields ingestion needs. Raw JSON is stored alongside, so nothing is lost
// by decoding narrowly here.
type MatchPayload struct {
	Info MatchInfo `json:"info"`
}

type MatchInfo struct {
	GameStartTimestamp int64         `json:"gameStartTimestamp"`
	GameDuration       int64         `json:"gameDuration"`
	QueueID            int           `json:"queueId"`
	Participants       []Participant `json:"participants"`
}

type Participant struct {
	Puuid                       string `json:"puuid"`
	ChampionID                  int    `json:"championId"`
	ChampionName                string `json:"championName"`
	Kills                       int    `json:"kills"`
	Deaths                      int    `json:"deaths"`
	Assists                     int    `json:"assists"`
	TotalMinionsKilled          int    `json:"totalMinionsKilled"`
	NeutralMinionsKilled        int    `json:"neutralMinionsKilled"`
	GoldEarned                  int    `json:"goldEarned"`
	TotalDamageDealtToChampions int64  `json:"totalDamageDealtToChampions"`
	VisionScore                 int    `json:"visionScore"`
	Win                         bool   `json:"win"`
}

// ParseMatch decodes a raw match payload. Malformed JSON or a shape mismatch
// comes back as a parse-kind error so ingestion can skip the single match.
func ParseMatch(raw []byte) (*MatchPayload, error) {
	var payload MatchPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindParse, "malformed match payload", err)
	}
	if payload.Info.GameStartTimestamp == 0 && len(payload.Info.Participants) == 0 {
		return nil, apperr.New(apperr.KindParse, "match payload missing info")
	}
	return &payload, nil
}

// Participant returns the participant row for the given puuid.
func (p *MatchPayload) Participant(puuid string) (*Participant, bool) {
	for i := range p.Info.Participants {
		if p.Info.Participants[i].Puuid == puuid {
			return &p.Info.Participants[i], true
		}
	}
	return nil, false
}
