// Package velograph is an object-graph mapper for Neo4j.
//
// Application code declares models (kinds of nodes identified by a label)
// and relations between them, then creates, finds, updates and deletes nodes
// through the models. Every operation compiles to a single parameterized
// Cypher statement run by a dialect.Driver.
//
// # Declaring Models
//
// Models are registered in a Graph. Relations are declared on a registered
// model and may refer to models that are not registered yet; they resolve
// as soon as both endpoints are known:
//
//	g := velograph.NewGraph(drv)
//	person, _ := g.Define("Person")
//	person.HasMany("tasks", velograph.Edge("created", velograph.Direct(person), velograph.Named("Task")))
//	task, _ := g.Define("Task")
//	task.HasOne("creator", velograph.Edge("created", velograph.Named("Person"), velograph.Direct(task)))
//	if err := g.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// Deferred references evaluate a function at resolution time, which allows
// package-level models to refer to each other:
//
//	var Task *velograph.Model
//	velograph.Edge("created", velograph.Direct(person), velograph.Deferred(func() *velograph.Model { return Task }))
//
// # Operations
//
// Every node carries a generated "guid" property used as its identity:
//
//	paul, err := person.Create(ctx, velograph.Props{"name": "Paul"})
//	tasks, err := paul.Many("tasks").Create(ctx, []velograph.Props{{"title": "Buy milk"}}, nil)
//	open, err := paul.Many("tasks").Get(ctx, predicate.Filter{"done": false}, nil)
//	n, err := person.Delete(ctx, predicate.Filter{"name": "Paul"}, true)
//
// Filters map property names to a literal value, compared for equality, or
// to a predicate built with the predicate package.
//
// # Includes
//
// Include queries load nodes and a chain of relations in one statement:
//
//	people, err := person.FindAndInclude(nil).
//	    Include(func(p *velograph.Placeholder) *velograph.Fragment {
//	        return p.Many("tasks").Get(nil, nil)
//	    }).
//	    All(ctx)
//	tasks, err := people[0].Loaded("tasks")
//
// # Errors
//
// Declaration failures are *ConfigError values. Relations used before both
// endpoints are registered fail with *UnresolvedError, and One relations
// holding more than one relationship fail with *CardinalityError. Driver
// errors are returned unchanged.
package velograph
