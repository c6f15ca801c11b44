package thinking

// actionNeedsFormatter routes from the provider node to the final
// extraction node when a round produced no tool calls and no formatter
// invocation — the loop is "complete" per spec §4.E.b but still needs
// one forced response_formatter turn (spec §4.E step 3).
const actionNeedsFormatter roundAction = "needs_formatter"
