/*
Copyright © 2025 Incentiv Network
*/
package main

import "github.com/IncentivNetwork/ui-sdk/cmd"

func main() {
	cmd.Execute()
}
