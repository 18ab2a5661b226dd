// Package cli implements tokenctl, a small operator tool for the gophauth
// server: key generation, account seeding, and the token endpoints.
//
// Commands:
//
//	keygen                              print a new signing secret
//	useradd -driver D -d DSN -e EMAIL [-roles R1,R2]
//	setroles -driver D -d DSN -e EMAIL -roles R1,R2
//	login -e EMAIL                      prompts for the password
//	refresh -r REFRESH_TOKEN
//	logout -r REFRESH_TOKEN
//	whoami -t ACCESS_TOKEN
//	sessions -t ACCESS_TOKEN
//	logout-all -t ACCESS_TOKEN
//
// Global flags (-a, -timeout, -c) are read by internal/client/config.
package cli
