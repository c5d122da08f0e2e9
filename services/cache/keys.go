package cache

import "fmt"

const CampaignsKey = "campaigns:all"

func WalletKey(uid string) string       { return fmt.Sprintf("wallet:%s", uid) }
func TransactionsKey(uid string) string { return fmt.Sprintf("transactions:%s", uid) }
func WorksKey(uid string) string        { return fmt.Sprintf("works:%s", uid) }
func WorkKey(uid, id string) string     { return fmt.Sprintf("works:%s:%s", uid, id) }
func UserKey(uid string) string         { return fmt.Sprintf("user:%s", uid) }
func CampaignKey(id string) string      { return fmt.Sprintf("campaign:%s", id) }
func RequestsKey(kind string) string    { return fmt.Sprintf("requests:%s", kind) }
