package command

import "time"

// Local views of admin API payloads. They carry yaml tags so every
// output format uses the same field names.

type identityView struct {
	Name           string    `json:"name" yaml:"name"`
	Fingerprint    string    `json:"fingerprint" yaml:"fingerprint"`
	NotAfter       time.Time `json:"not_after" yaml:"not_after"`
	CertificatePEM string    `json:"certificate_pem" yaml:"certificate_pem" table:"-"`
}

type trustView struct {
	Name        string    `json:"name" yaml:"name"`
	Alias       string    `json:"alias" yaml:"alias"`
	Host        string    `json:"host" yaml:"host"`
	Port        int       `json:"port" yaml:"port"`
	Connected   bool      `json:"connected" yaml:"connected"`
	NotAfter    time.Time `json:"not_after" yaml:"not_after" table:"wide"`
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint" table:"wide"`
}

type untrustView struct {
	Trust      string `json:"trust" yaml:"trust"`
	Connection string `json:"connection" yaml:"connection"`
}

type refreshView struct {
	Opened int `json:"opened" yaml:"opened"`
}

type tableSummaryView struct {
	Name    string `json:"name" yaml:"name"`
	Entries int    `json:"entries" yaml:"entries"`
	Dirty   bool   `json:"dirty" yaml:"dirty" table:"wide"`
	Digest  string `json:"digest" yaml:"digest" table:"wide"`
}

type entryView struct {
	Name     string `json:"name" yaml:"name"`
	Owner    string `json:"owner" yaml:"owner"`
	NextHop  string `json:"next_hop" yaml:"next_hop"`
	Distance int    `json:"distance" yaml:"distance"`
	TTL      int    `json:"ttl" yaml:"ttl"`
}

type tableView struct {
	Name    string      `json:"name" yaml:"name"`
	Entries []entryView `json:"entries" yaml:"entries"`
}

type linkView struct {
	Peer           string    `json:"peer" yaml:"peer"`
	Direction      string    `json:"direction" yaml:"direction"`
	State          string    `json:"state" yaml:"state"`
	Remote         string    `json:"remote" yaml:"remote"`
	OpenedAt       time.Time `json:"opened_at" yaml:"opened_at"`
	FramesSent     uint64    `json:"frames_sent" yaml:"frames_sent" table:"wide"`
	FramesReceived uint64    `json:"frames_received" yaml:"frames_received" table:"wide"`
}

type sendView struct {
	ID   string `json:"id" yaml:"id"`
	Sent bool   `json:"sent" yaml:"sent"`
}

type buildView struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

type statusView struct {
	Name      string        `json:"name" yaml:"name"`
	Addr      string        `json:"addr" yaml:"addr"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Uptime    time.Duration `json:"uptime" yaml:"uptime"`
	Links     int           `json:"links" yaml:"links"`
	Tables    int           `json:"tables" yaml:"tables"`
	Trusted   int           `json:"trusted" yaml:"trusted"`
	Build     buildView     `json:"build" yaml:"build" table:"-"`
}

type healthView struct {
	Status string `json:"status" yaml:"status"`
	Node   string `json:"node" yaml:"node"`
}

type profileView struct {
	Name    string `json:"name" yaml:"name"`
	Server  string `json:"server" yaml:"server"`
	Current bool   `json:"current" yaml:"current"`
}
