package main

import (
	"anime_tracker/ui"
	"anime_tracker/utils"
)

func main() {
	utils.Main()
	ui.RunApp()
}
