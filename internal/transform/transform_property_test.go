//go:build property

package transform

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var (
	importPool = []string{
		`import React from "react";`,
		`import React, { useState, useEffect } from 'react';`,
		`import * as Icons from "lucide-react";`,
		`import { Check, X as CloseIcon } from "lucide-react";`,
		"import {\n  Card,\n  CardHeader,\n} from \"@/components/ui/card\";",
		`import type { FC } from "react";`,
		`import "./styles.css";`,
	}
	bodyPool = []string{
		`  return <div className="p-4">Hello</div>;`,
		"  const [n, setN] = useState<number>(0);\n  return <button onClick={() => setN(n + 1)}>{n}</button>;",
		"  const label: string = props.title ?? \"x\";\n  return <h1>{label}</h1>;",
		"  const items = [1, 2, 3] as const;\n  return <ul>{items.map((i: number) => <li key={i}>{i}</li>)}</ul>;",
		"  return <p>Styles such as Bold, and Italic!</p>;",
	}
	declPool = []string{
		"",
		"interface CardProps {\n  title: string;\n}\n",
		"type Size = \"sm\" | \"lg\";\n",
		"type Props = {\n  a?: number;\n  b: string[];\n};\n",
		"function first<T>(xs: T[]): T {\n  return xs[0];\n}\n",
		"function useList<T>(initial: T[]) {\n  return useState<T[]>(initial);\n}\n",
	}
)

type generated struct {
	directive bool
	name      string
	src       string
}

func genSource() gopter.Gen {
	return gopter.CombineGens(
		gen.Bool(),
		gen.SliceOfN(3, gen.IntRange(0, len(importPool)-1)),
		gen.IntRange(0, len(declPool)-1),
		gen.RegexMatch(`[A-Z][a-z]{2,8}`),
		gen.IntRange(0, len(bodyPool)-1),
		gen.Bool(),
	).Map(func(v []interface{}) generated {
		var b strings.Builder
		directive := v[0].(bool)
		if directive {
			b.WriteString("\"use client\";\n\n")
		}
		for _, i := range v[1].([]int) {
			b.WriteString(importPool[i])
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(declPool[v[2].(int)])

		name := v[3].(string)
		body := bodyPool[v[4].(int)]
		if v[5].(bool) {
			b.WriteString("export default function " + name + "(props: CardProps) {\n" + body + "\n}\n")
		} else {
			b.WriteString("function " + name + "(props: CardProps) {\n" + body + "\n}\n\nexport default " + name + ";\n")
		}
		return generated{directive: directive, name: name, src: b.String()}
	})
}

func TestTransformProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("leading directive is removed", prop.ForAll(
		func(g generated) bool {
			return !strings.Contains(Transform(g.src).BrowserSource, `"use client"`)
		},
		genSource(),
	))

	properties.Property("no import keyword survives", prop.ForAll(
		func(g generated) bool {
			return !importKeyword.MatchString(Transform(g.src).BrowserSource)
		},
		genSource(),
	))

	properties.Property("transform is idempotent", prop.ForAll(
		func(g generated) bool {
			once := Transform(g.src).BrowserSource
			return Transform(once).BrowserSource == once
		},
		genSource(),
	))

	properties.Property("default export names the root and is rewritten", prop.ForAll(
		func(g generated) bool {
			res := Transform(g.src)
			return res.RootComponentName == g.name &&
				strings.Contains(res.BrowserSource, "function "+g.name+"(") &&
				!strings.Contains(res.BrowserSource, "export default")
		},
		genSource(),
	))

	properties.Property("arbitrary input never panics and names a root", prop.ForAll(
		func(s string) bool {
			return Transform(s).RootComponentName != ""
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
