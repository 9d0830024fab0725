package common

// GetAccountFromArgs extracts the account name from request arguments,
// defaulting to "default" when none is given.
func GetAccountFromArgs(args map[string]interface{}) string {
	if accountVal, ok := args["account"].(string); ok && accountVal != "" {
		return accountVal
	}
	return "default"
}
