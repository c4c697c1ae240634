package content

// DefaultLibrary seeds a playable scenario per mode so a fresh server
// accepts sessions without any authoring step.
func DefaultLibrary() *Library {
	l := NewLibrary()
	l.Register(&Scenario{
		ID:   "cr-basics",
		Mode: "commandrace",
		Name: "Shell Basics Sprint",
		Commands: []Command{
			{Text: "ls -la", Points: 100},
			{Text: "cd /var/log", Points: 100},
			{Text: "grep -r error .", Points: 150},
			{Text: "tail -f syslog", Points: 150},
			{Text: "chmod 600 id_rsa", Points: 200},
		},
	})
	l.Register(&Scenario{
		ID:   "siege-webshop",
		Mode: "siege",
		Name: "Webshop Siege",
		Vulns: []Vulnerability{
			{ID: "sqli-login", Name: "SQL injection on login", Points: 300, MinLevel: 2},
			{ID: "xss-search", Name: "Stored XSS in search", Points: 200, MinLevel: 1},
			{ID: "idor-orders", Name: "IDOR on order export", Points: 250, MinLevel: 3},
		},
		FinalFlag: "FLAG{webshop-pwned}",
	})
	l.Register(&Scenario{
		ID:   "forensic-mailtrail",
		Mode: "forensics",
		Name: "Mail Trail",
		Questions: []Question{
			{ID: "q1", Prompt: "Sender address of the phishing mail?", Answer: "billing@paypa1.example", Points: 100},
			{ID: "q2", Prompt: "SHA-256 of the attachment?", Answer: "9f2c7c01", Points: 200},
			{ID: "q3", Prompt: "C2 domain contacted after open?", Answer: "cdn-metrics.example", Points: 300},
		},
	})
	l.Register(&Scenario{
		ID:   "hill-core-router",
		Mode: "hillhold",
		Name: "Core Router Hill",
		Hill: &HillSettings{CapturePoints: 50, TickPoints: 10},
	})
	return l
}
