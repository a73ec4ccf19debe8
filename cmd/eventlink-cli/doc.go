// Command eventlink-cli manages an EventLink node through its admin API.
//
// Usage:
//
//	eventlink-cli status
//	eventlink-cli identity export --out a.pem
//	eventlink-cli trust add --name B --host 10.0.0.2 --cert b.pem
//	eventlink-cli routes show servers -o yaml
//	eventlink-cli send --kind chat --body hello B C
package main
