package taxonomy

// Built-in taxonomy used when no configuration file is given. The
// hierarchy keeps deep trees for evidence-grade archiving (financial,
// legal, government, medical, housing) next to flat everyday
// categories (orders, newsletters, social).

var defaultLabels = []string{
	// TIMELINE-EVIDENCE
	"TIMELINE-EVIDENCE",
	"TIMELINE-EVIDENCE/Location-Activity",
	"TIMELINE-EVIDENCE/Location-Activity/Google-Maps",
	"TIMELINE-EVIDENCE/Location-Activity/Redfin-Property",
	"TIMELINE-EVIDENCE/Location-Activity/Travel-Transport",
	"TIMELINE-EVIDENCE/Location-Activity/Check-Ins",
	"TIMELINE-EVIDENCE/Communications-Sent",
	"TIMELINE-EVIDENCE/Communications-Sent/Self-Emails",
	"TIMELINE-EVIDENCE/Communications-Sent/To-Contacts",
	"TIMELINE-EVIDENCE/Communications-Sent/Replies",
	"TIMELINE-EVIDENCE/Legal-Court",
	"TIMELINE-EVIDENCE/Legal-Court/Case-Files",
	"TIMELINE-EVIDENCE/Legal-Court/Attorney-Correspondence",
	"TIMELINE-EVIDENCE/Legal-Court/Court-Notices",
	"TIMELINE-EVIDENCE/Government",
	"TIMELINE-EVIDENCE/Government/IRS",
	"TIMELINE-EVIDENCE/Government/SSA",
	"TIMELINE-EVIDENCE/Government/Medicaid-Medicare",
	"TIMELINE-EVIDENCE/Government/Other-Gov",
	"TIMELINE-EVIDENCE/Financial-Transactions",
	"TIMELINE-EVIDENCE/Financial-Transactions/Banking",
	"TIMELINE-EVIDENCE/Financial-Transactions/Credit-Cards",
	"TIMELINE-EVIDENCE/Financial-Transactions/Investments",
	"TIMELINE-EVIDENCE/Financial-Transactions/Payment-Processors",
	"TIMELINE-EVIDENCE/Financial-Transactions/Bills-Utilities",
	"TIMELINE-EVIDENCE/Medical",
	"TIMELINE-EVIDENCE/Medical/Providers",
	"TIMELINE-EVIDENCE/Medical/Insurance",
	"TIMELINE-EVIDENCE/Medical/Appointments",
	"TIMELINE-EVIDENCE/Medical/Prescriptions",
	"TIMELINE-EVIDENCE/Housing",
	"TIMELINE-EVIDENCE/Housing/HQS-Inspections",
	"TIMELINE-EVIDENCE/Housing/Vouchers",
	"TIMELINE-EVIDENCE/Housing/Rent-Payments",
	"TIMELINE-EVIDENCE/Housing/Property-Search",
	// MUSIC
	"MUSIC",
	"MUSIC/Collaborations",
	"MUSIC/Platforms",
	"MUSIC/Platforms/SoundCloud",
	"MUSIC/Platforms/Spotify",
	"MUSIC/Platforms/Bandcamp",
	"MUSIC/Lyrics-Drafts",
	"MUSIC/Copyright-Legal",
	"MUSIC/Distribution",
	// PROJECTS
	"PROJECTS",
	"PROJECTS/SSRN-Academic",
	"PROJECTS/SSRN-Academic/Paper-Generation",
	"PROJECTS/SSRN-Academic/Submissions",
	"PROJECTS/SSRN-Academic/eJournals",
	"PROJECTS/GitHub-Dev",
	"PROJECTS/Open-Source",
	"PROJECTS/App-Ideas",
	"PROJECTS/Other-Projects",
	// JOB-SEARCH
	"JOB-SEARCH",
	"JOB-SEARCH/Applications",
	"JOB-SEARCH/Alerts",
	"JOB-SEARCH/Alerts/Indeed",
	"JOB-SEARCH/Alerts/LinkedIn",
	"JOB-SEARCH/Alerts/Other",
	"JOB-SEARCH/Responses",
	"JOB-SEARCH/Interviews",
	// API-KEYS-CREDENTIALS
	"API-KEYS-CREDENTIALS",
	"API-KEYS-CREDENTIALS/API-Keys",
	"API-KEYS-CREDENTIALS/Bot-Tokens",
	"API-KEYS-CREDENTIALS/Passwords",
	"API-KEYS-CREDENTIALS/Licenses",
	// CONTACTS
	"CONTACTS",
	"CONTACTS/Family",
	"CONTACTS/Collaborators",
	"CONTACTS/Medical-Team",
	"CONTACTS/Legal-Team",
	"CONTACTS/Housing-Contacts",
	"CONTACTS/Other-Important",
	// ORDERS-RECEIPTS
	"ORDERS-RECEIPTS",
	"ORDERS-RECEIPTS/Amazon",
	"ORDERS-RECEIPTS/Google-Play",
	"ORDERS-RECEIPTS/eBay",
	"ORDERS-RECEIPTS/Etsy",
	"ORDERS-RECEIPTS/Subscriptions",
	"ORDERS-RECEIPTS/Other-Purchases",
	// NEWSLETTERS
	"NEWSLETTERS",
	"NEWSLETTERS/Tech",
	"NEWSLETTERS/Finance",
	"NEWSLETTERS/Business",
	"NEWSLETTERS/Other",
	// SOFTWARE-TRACKING
	"SOFTWARE-TRACKING",
	"SOFTWARE-TRACKING/Purchases",
	"SOFTWARE-TRACKING/Trials",
	"SOFTWARE-TRACKING/Licenses",
	"SOFTWARE-TRACKING/Cancellations",
	// SOCIAL-MEDIA
	"SOCIAL-MEDIA",
	"SOCIAL-MEDIA/TikTok",
	"SOCIAL-MEDIA/LinkedIn",
	"SOCIAL-MEDIA/Reddit",
	"SOCIAL-MEDIA/Nextdoor",
	"SOCIAL-MEDIA/Other",
	// FLAGGED-REVIEW
	Fallback,
}

// defaultLegacy maps labels from the old flat scheme into the
// hierarchy. Patterns match the whole old label name, case
// insensitively.
var defaultLegacy = []LegacySpec{
	// Legal
	{Pattern: `^legal$`, Target: "TIMELINE-EVIDENCE/Legal-Court"},
	{Pattern: `^legal[/\\]court`, Target: "TIMELINE-EVIDENCE/Legal-Court"},
	{Pattern: `^legal[/\\]attorney`, Target: "TIMELINE-EVIDENCE/Legal-Court/Attorney-Correspondence"},
	{Pattern: `^legal[/\\]case`, Target: "TIMELINE-EVIDENCE/Legal-Court/Case-Files"},
	{Pattern: `^court`, Target: "TIMELINE-EVIDENCE/Legal-Court"},
	{Pattern: `^attorney`, Target: "TIMELINE-EVIDENCE/Legal-Court/Attorney-Correspondence"},
	// Financial
	{Pattern: `^financ`, Target: "TIMELINE-EVIDENCE/Financial-Transactions"},
	{Pattern: `^bank`, Target: "TIMELINE-EVIDENCE/Financial-Transactions/Banking"},
	{Pattern: `^credit.?card`, Target: "TIMELINE-EVIDENCE/Financial-Transactions/Credit-Cards"},
	{Pattern: `^invest`, Target: "TIMELINE-EVIDENCE/Financial-Transactions/Investments"},
	{Pattern: `^bills?$`, Target: "TIMELINE-EVIDENCE/Financial-Transactions/Bills-Utilities"},
	{Pattern: `^utilit`, Target: "TIMELINE-EVIDENCE/Financial-Transactions/Bills-Utilities"},
	{Pattern: `^payment`, Target: "TIMELINE-EVIDENCE/Financial-Transactions/Payment-Processors"},
	// Government
	{Pattern: `^gov`, Target: "TIMELINE-EVIDENCE/Government"},
	{Pattern: `^irs$`, Target: "TIMELINE-EVIDENCE/Government/IRS"},
	{Pattern: `^tax`, Target: "TIMELINE-EVIDENCE/Government/IRS"},
	{Pattern: `^ssa$`, Target: "TIMELINE-EVIDENCE/Government/SSA"},
	{Pattern: `^social.?security`, Target: "TIMELINE-EVIDENCE/Government/SSA"},
	{Pattern: `^medicaid`, Target: "TIMELINE-EVIDENCE/Government/Medicaid-Medicare"},
	{Pattern: `^medicare`, Target: "TIMELINE-EVIDENCE/Government/Medicaid-Medicare"},
	// Medical
	{Pattern: `^medical`, Target: "TIMELINE-EVIDENCE/Medical"},
	{Pattern: `^health`, Target: "TIMELINE-EVIDENCE/Medical"},
	{Pattern: `^doctor`, Target: "TIMELINE-EVIDENCE/Medical/Providers"},
	{Pattern: `^prescription`, Target: "TIMELINE-EVIDENCE/Medical/Prescriptions"},
	{Pattern: `^appointment`, Target: "TIMELINE-EVIDENCE/Medical/Appointments"},
	{Pattern: `^insurance$`, Target: "TIMELINE-EVIDENCE/Medical/Insurance"},
	// Housing
	{Pattern: `^hous`, Target: "TIMELINE-EVIDENCE/Housing"},
	{Pattern: `^rent`, Target: "TIMELINE-EVIDENCE/Housing/Rent-Payments"},
	{Pattern: `^voucher`, Target: "TIMELINE-EVIDENCE/Housing/Vouchers"},
	{Pattern: `^inspect`, Target: "TIMELINE-EVIDENCE/Housing/HQS-Inspections"},
	{Pattern: `^property`, Target: "TIMELINE-EVIDENCE/Housing/Property-Search"},
	// Location and travel
	{Pattern: `^travel`, Target: "TIMELINE-EVIDENCE/Location-Activity/Travel-Transport"},
	{Pattern: `^transport`, Target: "TIMELINE-EVIDENCE/Location-Activity/Travel-Transport"},
	{Pattern: `^location`, Target: "TIMELINE-EVIDENCE/Location-Activity"},
	{Pattern: `^maps?$`, Target: "TIMELINE-EVIDENCE/Location-Activity/Google-Maps"},
	{Pattern: `^redfin`, Target: "TIMELINE-EVIDENCE/Location-Activity/Redfin-Property"},
	// Music
	{Pattern: `^music$`, Target: "MUSIC"},
	{Pattern: `^music[/\\]`, Target: "MUSIC"},
	{Pattern: `^collab`, Target: "MUSIC/Collaborations"},
	{Pattern: `^soundcloud`, Target: "MUSIC/Platforms/SoundCloud"},
	{Pattern: `^spotify`, Target: "MUSIC/Platforms/Spotify"},
	{Pattern: `^lyrics`, Target: "MUSIC/Lyrics-Drafts"},
	{Pattern: `^copyright`, Target: "MUSIC/Copyright-Legal"},
	{Pattern: `^distribut`, Target: "MUSIC/Distribution"},
	// Projects
	{Pattern: `^project`, Target: "PROJECTS"},
	{Pattern: `^ssrn`, Target: "PROJECTS/SSRN-Academic"},
	{Pattern: `^academ`, Target: "PROJECTS/SSRN-Academic"},
	{Pattern: `^github`, Target: "PROJECTS/GitHub-Dev"},
	{Pattern: `^dev$`, Target: "PROJECTS/GitHub-Dev"},
	{Pattern: `^development`, Target: "PROJECTS/GitHub-Dev"},
	{Pattern: `^coding`, Target: "PROJECTS/GitHub-Dev"},
	{Pattern: `^code$`, Target: "PROJECTS/GitHub-Dev"},
	{Pattern: `^open.?source`, Target: "PROJECTS/Open-Source"},
	{Pattern: `^app.?idea`, Target: "PROJECTS/App-Ideas"},
	// Job search
	{Pattern: `^job`, Target: "JOB-SEARCH"},
	{Pattern: `^career`, Target: "JOB-SEARCH"},
	{Pattern: `^employ`, Target: "JOB-SEARCH"},
	{Pattern: `^application`, Target: "JOB-SEARCH/Applications"},
	{Pattern: `^resume`, Target: "JOB-SEARCH/Applications"},
	{Pattern: `^interview`, Target: "JOB-SEARCH/Interviews"},
	{Pattern: `^indeed`, Target: "JOB-SEARCH/Alerts/Indeed"},
	{Pattern: `^linkedin[/\\]job`, Target: "JOB-SEARCH/Alerts/LinkedIn"},
	{Pattern: `^job.?alert`, Target: "JOB-SEARCH/Alerts"},
	// API keys and credentials
	{Pattern: `^api`, Target: "API-KEYS-CREDENTIALS/API-Keys"},
	{Pattern: `^key`, Target: "API-KEYS-CREDENTIALS/API-Keys"},
	{Pattern: `^token`, Target: "API-KEYS-CREDENTIALS/Bot-Tokens"},
	{Pattern: `^password`, Target: "API-KEYS-CREDENTIALS/Passwords"},
	{Pattern: `^credential`, Target: "API-KEYS-CREDENTIALS"},
	{Pattern: `^license`, Target: "API-KEYS-CREDENTIALS/Licenses"},
	// Contacts
	{Pattern: `^contact`, Target: "CONTACTS"},
	{Pattern: `^family`, Target: "CONTACTS/Family"},
	// Orders and receipts
	{Pattern: `^order`, Target: "ORDERS-RECEIPTS"},
	{Pattern: `^receipt`, Target: "ORDERS-RECEIPTS"},
	{Pattern: `^purchase`, Target: "ORDERS-RECEIPTS"},
	{Pattern: `^amazon`, Target: "ORDERS-RECEIPTS/Amazon"},
	{Pattern: `^ebay`, Target: "ORDERS-RECEIPTS/eBay"},
	{Pattern: `^etsy`, Target: "ORDERS-RECEIPTS/Etsy"},
	{Pattern: `^google.?play`, Target: "ORDERS-RECEIPTS/Google-Play"},
	{Pattern: `^subscript`, Target: "ORDERS-RECEIPTS/Subscriptions"},
	{Pattern: `^shopping`, Target: "ORDERS-RECEIPTS/Other-Purchases"},
	// Newsletters
	{Pattern: `^newsletter`, Target: "NEWSLETTERS"},
	{Pattern: `^digest`, Target: "NEWSLETTERS"},
	{Pattern: `^tech.?news`, Target: "NEWSLETTERS/Tech"},
	// Software
	{Pattern: `^software`, Target: "SOFTWARE-TRACKING"},
	{Pattern: `^trial`, Target: "SOFTWARE-TRACKING/Trials"},
	{Pattern: `^cancel`, Target: "SOFTWARE-TRACKING/Cancellations"},
	// Social media
	{Pattern: `^social`, Target: "SOCIAL-MEDIA"},
	{Pattern: `^tiktok`, Target: "SOCIAL-MEDIA/TikTok"},
	{Pattern: `^linkedin$`, Target: "SOCIAL-MEDIA/LinkedIn"},
	{Pattern: `^reddit`, Target: "SOCIAL-MEDIA/Reddit"},
	{Pattern: `^nextdoor`, Target: "SOCIAL-MEDIA/Nextdoor"},
	// Catch-all
	{Pattern: `^review$`, Target: Fallback},
	{Pattern: `^todo$`, Target: Fallback},
	{Pattern: `^to.?do$`, Target: Fallback},
	{Pattern: `^flag`, Target: Fallback},
}

// defaultRules classify by sender, subject and the List-Unsubscribe
// header. Rules for self-addressed mail depend on the user's own
// address and live in the user's configuration file, not here.
var defaultRules = []RuleSpec{
	{Name: "GitHub", Priority: 10, From: `github\.com`,
		Labels: []string{"PROJECTS/GitHub-Dev"}},
	{Name: "SSRN-From", Priority: 20, From: `ssrn`,
		Labels: []string{"PROJECTS/SSRN-Academic"}},
	{Name: "SSRN-Subject", Priority: 30, Subject: `ssrn`,
		Labels: []string{"PROJECTS/SSRN-Academic"}},
	{Name: "Indeed-Jobs", Priority: 40, From: `indeed`, Subject: `job`,
		Labels: []string{"JOB-SEARCH/Alerts/Indeed"}},
	{Name: "LinkedIn-Jobs", Priority: 50, From: `linkedin`, Subject: `job`,
		Labels: []string{"JOB-SEARCH/Alerts/LinkedIn"}},
	{Name: "Amazon-Orders", Priority: 60, From: `amazon`, Subject: `(order|shipment)`,
		Labels: []string{"ORDERS-RECEIPTS/Amazon"}},
	{Name: "Google-Play", Priority: 70, From: `google`, Subject: `(receipt|purchase)`,
		Labels: []string{"ORDERS-RECEIPTS/Google-Play"}},
	{Name: "Banking", Priority: 80, From: `bank`,
		Labels: []string{"TIMELINE-EVIDENCE/Financial-Transactions/Banking"}},
	{Name: "Investments", Priority: 90, From: `(robinhood|fidelity|vanguard)`,
		Labels: []string{"TIMELINE-EVIDENCE/Financial-Transactions/Investments"}},
	{Name: "Medical-Portal", Priority: 100, From: `mychart`,
		Labels: []string{"TIMELINE-EVIDENCE/Medical/Providers"}},
	{Name: "IRS", Priority: 110, Subject: `\birs\b`,
		Labels: []string{"TIMELINE-EVIDENCE/Government/IRS"}},
	{Name: "SSA", Priority: 120, Subject: `(ssa|social\s+security)`,
		Labels: []string{"TIMELINE-EVIDENCE/Government/SSA"}},
	{Name: "Medicaid-Medicare", Priority: 130, Subject: `(medicaid|medicare)`,
		Labels: []string{"TIMELINE-EVIDENCE/Government/Medicaid-Medicare"}},
	{Name: "Redfin", Priority: 140, From: `redfin`,
		Labels: []string{"TIMELINE-EVIDENCE/Location-Activity/Redfin-Property"}},
	{Name: "Housing-Inspections", Priority: 150, Subject: `(hqs|inspection)`,
		Labels: []string{"TIMELINE-EVIDENCE/Housing/HQS-Inspections"}},
	{Name: "SoundCloud", Priority: 160, From: `soundcloud`,
		Labels: []string{"MUSIC/Platforms/SoundCloud"}},
	{Name: "Spotify", Priority: 170, From: `spotify`,
		Labels: []string{"MUSIC/Platforms/Spotify"}},
	{Name: "Bandcamp", Priority: 180, From: `bandcamp`,
		Labels: []string{"MUSIC/Platforms/Bandcamp"}},
	{Name: "TikTok", Priority: 190, From: `tiktok`,
		Labels: []string{"SOCIAL-MEDIA/TikTok"}},
	{Name: "LinkedIn-Social", Priority: 200, From: `linkedin`,
		Labels: []string{"SOCIAL-MEDIA/LinkedIn"}},
	{Name: "Reddit", Priority: 210, From: `reddit`,
		Labels: []string{"SOCIAL-MEDIA/Reddit"}},
	{Name: "Nextdoor", Priority: 220, From: `nextdoor`,
		Labels: []string{"SOCIAL-MEDIA/Nextdoor"}},
	{Name: "eBay", Priority: 230, From: `ebay`,
		Labels: []string{"ORDERS-RECEIPTS/eBay"}},
	{Name: "Etsy", Priority: 240, From: `etsy`,
		Labels: []string{"ORDERS-RECEIPTS/Etsy"}},
	{Name: "Legal-Court", Priority: 250, Subject: `(court|attorney|legal|subpoena)`,
		Labels: []string{"TIMELINE-EVIDENCE/Legal-Court"}},
	{Name: "Newsletters", Priority: 260, HasUnsubscribe: true,
		Labels: []string{"NEWSLETTERS"}},
}

// Default returns the built-in taxonomy. It panics only if the
// built-in tables are themselves invalid, which is a programming
// error caught by the package tests.
func Default() *Taxonomy {
	t, err := FromFile(&File{
		Labels: defaultLabels,
		Legacy: defaultLegacy,
		Rules:  defaultRules,
	})
	if err != nil {
		panic("taxonomy: invalid built-in defaults: " + err.Error())
	}
	return t
}
