/*
Package umlsync keeps a sequence diagram's description text and its structured
model in sync, in both directions.

The text side is PlantUML-like: @startuml / @enduml, title, actor and
participant declarations, messages, notes, dividers, delays and the loop, alt,
opt, par and group blocks. The structured side is a list of actors, a
selection and a tree of actions, edited by a form or a program.

# Architecture

  - A line parser extracts actors, messages, notes and group markers from text.
  - A dispatcher runs that parser on an isolated worker (a goroutine pipe or a
    child process), caches results and falls back to a cooperative parse on the
    caller, then to a capped actor scan, when the worker is slow or gone.
  - A structured parser builds the nested action tree on top of the line result.
  - The engine owns the canonical state. It re-parses text, regenerates text
    from the model, records a bounded undo history and notifies listeners.

# Usage

	ed, err := umlsync.New(umlsync.WithConfig(config.Default()))
	if err != nil {
		log.Fatal(err)
	}
	defer ed.Close()

	res, err := ed.UpdateFromCode(ctx, "@startuml\nactor Alice\nactor Bob\nAlice -> Bob: hi\n@enduml", runtime.UpdateOptions{})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.State.Actors)

	title := "Greeting"
	_, _ = ed.UpdateFromUI(ctx, runtime.Changes{Title: &title})
	fmt.Println(ed.Code())
*/
package umlsync
